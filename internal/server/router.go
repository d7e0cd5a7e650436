package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/smallsh/internal/history"
	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/process"
)

// Router provides read-only HTTP handlers exposing shell state.
// Endpoints:
//
//	GET {basePath}/jobs      background children not yet reaped
//	GET {basePath}/state     foreground-only flag and last foreground status
//	GET {basePath}/history   recorded events (when the sink can list them)
//	GET {basePath}/metrics   Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	registry *process.Registry
	state    *process.State
	history  history.Lister
	session  string
	gatherer prometheus.Gatherer
	basePath string
}

type Option func(*Router)

// WithHistory enables /history, defaulting to the given session.
func WithHistory(l history.Lister, session string) Option {
	return func(r *Router) {
		r.history = l
		r.session = session
	}
}

// WithGatherer serves g on /metrics instead of the default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *Router) { r.gatherer = g }
}

func NewRouter(reg *process.Registry, st *process.State, basePath string, opts ...Option) *Router {
	r := &Router{registry: reg, state: st, basePath: sanitizeBase(basePath)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/jobs", r.handleJobs)
	group.GET("/state", r.handleState)
	group.GET("/history", r.handleHistory)
	if r.gatherer != nil {
		group.GET("/metrics", gin.WrapH(metrics.HandlerFor(r.gatherer)))
	} else {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer returns an http.Server for addr using this router. Serve runs it.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve listens on srv.Addr until ctx is done, then shuts down gracefully.
// When srv.TLSConfig is set the listener terminates TLS. ready, when non-nil,
// receives the bound address.
func Serve(ctx context.Context, srv *http.Server, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if srv.TLSConfig != nil {
		ln = tls.NewListener(ln, srv.TLSConfig)
	}
	if ready != nil {
		ready <- ln.Addr()
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type jobsResp struct {
	Jobs []process.Job `json:"jobs"`
}

type stateResp struct {
	ForegroundOnly bool                `json:"foreground_only"`
	ForegroundPID  int                 `json:"foreground_pid,omitempty"`
	LastStatus     process.ExitOutcome `json:"last_status"`
	Background     int                 `json:"background"`
}

type historyResp struct {
	Session string          `json:"session"`
	Events  []history.Event `json:"events"`
}

func (r *Router) handleJobs(c *gin.Context) {
	jobs := r.registry.Snapshot()
	if jobs == nil {
		jobs = []process.Job{}
	}
	writeJSON(c, http.StatusOK, jobsResp{Jobs: jobs})
}

func (r *Router) handleState(c *gin.Context) {
	writeJSON(c, http.StatusOK, stateResp{
		ForegroundOnly: r.state.ForegroundOnly(),
		ForegroundPID:  r.state.ForegroundPID(),
		LastStatus:     r.state.LastStatus(),
		Background:     r.registry.Len(),
	})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history is not enabled or cannot be listed"})
		return
	}
	session := c.DefaultQuery("session", r.session)
	if c.Query("all") == "1" {
		session = ""
	}
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 10000 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be between 1 and 10000"})
			return
		}
		limit = n
	}
	events, err := r.history.List(c.Request.Context(), session, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(c, http.StatusOK, historyResp{Session: session, Events: events})
}
