// Package smallsh is an embeddable line-oriented shell: it reads commands,
// runs them in the foreground or background with simple redirection, and
// keeps track of background children until they are reaped.
package smallsh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	cfg "github.com/loykin/smallsh/internal/config"
	"github.com/loykin/smallsh/internal/env"
	"github.com/loykin/smallsh/internal/expand"
	"github.com/loykin/smallsh/internal/history"
	"github.com/loykin/smallsh/internal/history/factory"
	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/parser"
	"github.com/loykin/smallsh/internal/process"
	iapi "github.com/loykin/smallsh/internal/server"
	itls "github.com/loykin/smallsh/internal/tls"
	"github.com/loykin/smallsh/internal/shell"
)

// Re-export core types for external consumers.

type Config = cfg.Config

type Invocation = parser.Invocation

type ExitOutcome = process.ExitOutcome

type Job = process.Job

type HistorySink = history.Sink

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return cfg.Default() }

// Stdio holds the streams of the shell. Nil fields fall back to the process
// streams.
type Stdio struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

func (s Stdio) withDefaults() Stdio {
	if s.In == nil {
		s.In = os.Stdin
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}
	if s.Err == nil {
		s.Err = os.Stderr
	}
	return s
}

// Shell wires configuration, history, metrics and the optional API around
// the interactive loop.
type Shell struct {
	cfg       Config
	logger    *slog.Logger
	logCloser io.Closer

	registry *process.Registry
	state    *process.State
	recorder *history.Recorder
	reader   shell.LineReader
	loop     *shell.Shell

	server *http.Server
	ready  chan net.Addr

	closeOnce sync.Once
	closeErr  error
}

// New validates c and builds a shell on stdio. The caller must Close it.
func New(c Config, stdio Stdio) (*Shell, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	stdio = stdio.withDefaults()

	log, logCloser, err := c.Log.NewSlogger(stdio.Err)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	s := &Shell{
		cfg:       c,
		logger:    log,
		logCloser: logCloser,
		registry:  process.NewRegistry(),
		state:     process.NewState(),
	}
	if err := s.build(stdio); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Shell) build(stdio Stdio) error {
	c := s.cfg
	if c.Metrics.Enabled || c.API.Listen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	e := env.FromOS()
	overrides, err := c.EnvOverrides(nil)
	if err != nil {
		return err
	}
	for _, kv := range overrides {
		k, v, _ := strings.Cut(kv, "=")
		e.Set(k, v)
	}

	if c.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		s.recorder = history.NewRecorder(sink, c.History.Buffer, s.logger)
	}

	coord := shell.NewCoordinator(s.registry, s.state, nil)
	coord.SetLogger(s.logger)

	var out io.Writer
	if shell.IsTerminal(stdio.In) {
		er, err := shell.NewEditorReader(stdio.In, stdio.Out, c.Prompt, func() { coord.Toggle() })
		if err != nil {
			return fmt.Errorf("line editor: %w", err)
		}
		s.reader = er
		out = shell.NewSyncWriter(er.Stdout())
	} else {
		out = shell.NewSyncWriter(stdio.Out)
		s.reader = shell.NewPromptReader(stdio.In, out, c.Prompt)
		coord.SetReprompt(c.Prompt)
	}
	coord.SetOutput(out)

	launcher := &process.Launcher{
		Registry: s.registry,
		State:    s.state,
		Out:      out,
		Stdin:    stdio.In,
		Stdout:   stdio.Out,
		Stderr:   stdio.Err,
		Env:      e,
		Logger:   s.logger,
	}
	if s.recorder != nil {
		launcher.Observer = s.recorder
		coord.SetObserver(s.recorder)
	}

	s.loop, err = shell.New(shell.Config{
		Reader:        s.reader,
		Out:           out,
		Parser:        parser.New(c.MaxLineLength, c.MaxArgs),
		Expander:      expand.New(e, os.Getpid()),
		Launcher:      launcher,
		Coordinator:   coord,
		Env:           e,
		Logger:        s.logger,
		LegacyCDRoot:  c.LegacyCDRoot,
		ShutdownGrace: c.ShutdownGrace,
	})
	if err != nil {
		return err
	}

	if c.API.Listen != "" {
		opts := []iapi.Option{iapi.WithGatherer(prometheus.DefaultGatherer)}
		if s.recorder != nil {
			if l, ok := s.recorder.Sink().(history.Lister); ok {
				opts = append(opts, iapi.WithHistory(l, s.recorder.Session()))
			}
		}
		router := iapi.NewRouter(s.registry, s.state, c.API.BasePath, opts...)
		s.server = iapi.NewServer(c.API.Listen, router)
		if s.server.TLSConfig, err = itls.Setup(c.API.TLS); err != nil {
			return fmt.Errorf("api tls: %w", err)
		}
		s.ready = make(chan net.Addr, 1)
	}
	return nil
}

// Run drives the loop until exit or end of input and returns the shell's
// exit code. With the API enabled, the server runs until the loop returns.
func (s *Shell) Run(ctx context.Context) (int, error) {
	if s.server == nil {
		return s.loop.Run(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var code int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		var err error
		code, err = s.loop.Run(gctx)
		return err
	})
	g.Go(func() error {
		if err := iapi.Serve(gctx, s.server, s.ready); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	err := g.Wait()
	if err != nil && code == 0 {
		code = 1
	}
	return code, err
}

// APIAddr yields the bound API address once the server is listening. It is
// nil when the API is disabled.
func (s *Shell) APIAddr() <-chan net.Addr { return s.ready }

// Session is the history session id, empty when history is disabled.
func (s *Shell) Session() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.Session()
}

// Jobs returns the background children not yet reaped.
func (s *Shell) Jobs() []Job { return s.registry.Snapshot() }

// LastStatus is the outcome of the most recent foreground command.
func (s *Shell) LastStatus() ExitOutcome { return s.state.LastStatus() }

// Logger is the shell's diagnostics logger.
func (s *Shell) Logger() *slog.Logger { return s.logger }

// Close flushes history and releases the reader and log file.
func (s *Shell) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.recorder != nil {
			errs = append(errs, s.recorder.Close())
		}
		// The plain reader does not own stdin.
		if s.reader != nil {
			if _, ok := s.reader.(*shell.EditorReader); ok {
				errs = append(errs, s.reader.Close())
			}
		}
		if s.logCloser != nil {
			errs = append(errs, s.logCloser.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
