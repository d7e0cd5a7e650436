package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/process"
)

var (
	msgEnterForegroundOnly = []byte("\nEntering foreground-only mode (& is now ignored)\n")
	msgExitForegroundOnly  = []byte("\nExiting foreground-only mode\n")
	msgInterrupted         = []byte(fmt.Sprintf("\nterminated by signal %d\n", interruptNumber))
)

// Coordinator reacts to child exit, interactive stop and interrupt. Signals
// are received by one goroutine; reactions run there as ordinary code.
type Coordinator struct {
	registry *process.Registry
	state    *process.State
	out      io.Writer
	observer process.Observer
	logger   *slog.Logger

	// reprompt is written after an asynchronous banner while the loop is
	// blocked at the prompt. The line editor redraws its own prompt, so it
	// leaves this empty.
	reprompt []byte
	atPrompt atomic.Bool
	// quiet suppresses reap announcements once shutdown has begun.
	quiet atomic.Bool

	reapMu sync.Mutex

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	sigCh     chan os.Signal
	stop      chan struct{}
	done      chan struct{}
}

func NewCoordinator(reg *process.Registry, st *process.State, out io.Writer) *Coordinator {
	return &Coordinator{
		registry: reg,
		state:    st,
		out:      out,
		logger:   slog.Default(),
		sigCh:    make(chan os.Signal, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Coordinator) SetObserver(o process.Observer) { c.observer = o }

// SetOutput replaces the message writer. It must be called before Start.
func (c *Coordinator) SetOutput(w io.Writer) { c.out = w }

func (c *Coordinator) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetReprompt sets the prompt re-issued after a banner printed at the prompt.
func (c *Coordinator) SetReprompt(p string) { c.reprompt = []byte(p) }

// SetAtPrompt records whether the loop is waiting for input.
func (c *Coordinator) SetAtPrompt(v bool) { c.atPrompt.Store(v) }

// Start installs the signal handlers and runs the reaction goroutine until
// Stop is called or ctx is done. Calling Start more than once has no effect.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		signal.Notify(c.sigCh, watched...)
		c.started.Store(true)
		go c.run(ctx)
	})
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case sig := <-c.sigCh:
			c.handle(sig)
		}
	}
}

func (c *Coordinator) handle(sig os.Signal) {
	switch sig {
	case sigChild:
		c.ReapPass()
	case sigStop:
		c.Toggle()
	case sigInterrupt:
		c.Interrupt()
	}
}

// Stop removes the handlers and waits for the goroutine to exit.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		signal.Stop(c.sigCh)
		close(c.stop)
		if c.started.Load() {
			<-c.done
		}
	})
}

// ReapPass collects every registered background child that has terminated,
// announcing each one. It never blocks and returns the number reaped.
func (c *Coordinator) ReapPass() int { return c.reap(false) }

func (c *Coordinator) reap(quiet bool) int {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()

	n := 0
	for _, job := range c.registry.Snapshot() {
		out, done, err := process.TryReap(job.PID)
		if errors.Is(err, process.ErrNotChild) {
			c.registry.Remove(job.PID)
			c.logger.Warn("background pid is no longer a child", "pid", job.PID)
			continue
		}
		if err != nil {
			c.logger.Warn("reap failed", "pid", job.PID, "error", err)
			continue
		}
		if !done {
			continue
		}
		if _, ok := c.registry.Remove(job.PID); !ok {
			continue
		}
		n++
		metrics.IncExit(process.ModeBackground, out.Kind.String())
		if c.observer != nil {
			c.observer.Finished(job, true, out)
		}
		c.logger.Debug("background child reaped", "pid", job.PID, "outcome", out.String())
		if !quiet && !c.quiet.Load() {
			c.write([]byte(fmt.Sprintf("\nBackground pid %d is done: %s\n", job.PID, out)))
		}
	}
	return n
}

// Toggle flips foreground-only mode and announces the new mode.
func (c *Coordinator) Toggle() bool {
	on := c.state.ToggleForegroundOnly()
	c.logger.Debug("foreground-only toggled", "on", on)
	if on {
		c.write(msgEnterForegroundOnly)
	} else {
		c.write(msgExitForegroundOnly)
	}
	return on
}

// Interrupt reacts to SIGINT. During a foreground wait the child receives the
// interrupt from the terminal and the launcher reports it, so only the
// prompt case is announced here.
func (c *Coordinator) Interrupt() {
	if !c.atPrompt.Load() {
		return
	}
	c.announceInterrupt()
}

func (c *Coordinator) announceInterrupt() { c.write(msgInterrupted) }

func (c *Coordinator) write(msg []byte) {
	if c.out == nil {
		return
	}
	if len(c.reprompt) > 0 && c.atPrompt.Load() {
		buf := make([]byte, 0, len(msg)+len(c.reprompt))
		msg = append(append(buf, msg...), c.reprompt...)
	}
	_, _ = c.out.Write(msg)
}

// Shutdown interrupts every background child still registered, waits grace
// and reaps whatever has exited without announcing it.
func (c *Coordinator) Shutdown(grace time.Duration) int {
	c.quiet.Store(true)
	pids := c.registry.PIDs()
	for _, pid := range pids {
		if err := process.Interrupt(pid); err != nil {
			c.logger.Warn("interrupt background child", "pid", pid, "error", err)
		}
	}
	if len(pids) == 0 {
		return 0
	}
	time.Sleep(grace)
	return c.reap(true)
}
