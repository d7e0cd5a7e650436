package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/smallsh/internal/process"
)

const (
	DefaultBuffer      = 256
	DefaultSendTimeout = 5 * time.Second
)

// Recorder forwards events to a Sink from a single worker goroutine so that
// slow sinks never stall the prompt. It implements process.Observer.
type Recorder struct {
	sink    Sink
	session string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	ch      chan Event
	done    chan struct{}
	dropped atomic.Uint64
}

// NewRecorder starts the worker. buffer <= 0 selects DefaultBuffer.
func NewRecorder(sink Sink, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:    sink,
		session: uuid.NewString(),
		timeout: DefaultSendTimeout,
		logger:  logger.With("component", "history"),
		ch:      make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Session identifies this shell run on every record.
func (r *Recorder) Session() string { return r.session }

// Dropped is the number of events discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Sink returns the destination the recorder writes to.
func (r *Recorder) Sink() Sink { return r.sink }

// Record enqueues e without blocking. Events recorded after Close are dropped.
func (r *Recorder) Record(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	if e.Record.Session == "" {
		e.Record.Session = r.session
	}
	select {
	case r.ch <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("history buffer full, event dropped", "type", e.Type, "pid", e.Record.PID)
	}
}

func (r *Recorder) Started(job process.Job, args []string, background bool) {
	r.Record(Event{
		Type:       EventStart,
		OccurredAt: job.StartedAt,
		Record: Record{
			PID:        job.PID,
			Command:    job.Command,
			Args:       append([]string(nil), args...),
			Background: background,
			StartedAt:  job.StartedAt,
		},
	})
}

func (r *Recorder) Finished(job process.Job, background bool, out process.ExitOutcome) {
	r.Record(Event{
		Type:       EventExit,
		OccurredAt: time.Now(),
		Record: Record{
			PID:        job.PID,
			Command:    job.Command,
			Background: background,
			StartedAt:  job.StartedAt,
			Outcome:    out.Kind.String(),
			Value:      out.Value,
		},
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.sink.Send(ctx, e); err != nil {
			r.logger.Warn("history sink send failed", "type", e.Type, "pid", e.Record.PID, "error", err)
		}
		cancel()
	}
}

// Close drains buffered events, stops the worker and closes the sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
	return r.sink.Close()
}
