package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/smallsh/internal/env"
	"github.com/loykin/smallsh/internal/expand"
	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/parser"
	"github.com/loykin/smallsh/internal/process"
)

const DefaultShutdownGrace = 50 * time.Millisecond

// Config carries the collaborators of a Shell. Reader, Launcher and
// Coordinator are required.
type Config struct {
	Reader      LineReader
	Out         io.Writer
	Parser      *parser.Parser
	Expander    *expand.Expander
	Launcher    *process.Launcher
	Coordinator *Coordinator
	Env         *env.Env
	Logger      *slog.Logger

	LegacyCDRoot  bool
	ShutdownGrace time.Duration
}

// Shell is the read, parse and dispatch loop.
type Shell struct {
	reader   LineReader
	out      io.Writer
	parser   *parser.Parser
	expander *expand.Expander
	launcher *process.Launcher
	coord    *Coordinator
	state    *process.State
	env      *env.Env
	logger   *slog.Logger

	legacyCDRoot bool
	grace        time.Duration
}

func New(cfg Config) (*Shell, error) {
	if cfg.Reader == nil || cfg.Launcher == nil || cfg.Coordinator == nil {
		return nil, errors.New("shell: reader, launcher and coordinator are required")
	}
	s := &Shell{
		reader:       cfg.Reader,
		out:          cfg.Out,
		parser:       cfg.Parser,
		expander:     cfg.Expander,
		launcher:     cfg.Launcher,
		coord:        cfg.Coordinator,
		state:        cfg.Launcher.State,
		env:          cfg.Env,
		logger:       cfg.Logger,
		legacyCDRoot: cfg.LegacyCDRoot,
		grace:        cfg.ShutdownGrace,
	}
	if s.out == nil {
		s.out = io.Discard
	}
	if s.parser == nil {
		s.parser = parser.New(parser.DefaultMaxLineLength, parser.DefaultMaxArgs)
	}
	if s.expander == nil {
		s.expander = expand.New(expand.LookupFunc(s.lookup), os.Getpid())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.grace <= 0 {
		s.grace = DefaultShutdownGrace
	}
	return s, nil
}

func (s *Shell) lookup(name string) (string, bool) {
	if s.env != nil {
		return s.env.Lookup(name)
	}
	return os.LookupEnv(name)
}

// Run reads and dispatches lines until exit, end of input or ctx is done.
// Cancelling ctx closes the reader to unblock a pending read.
func (s *Shell) Run(ctx context.Context) (int, error) {
	s.coord.Start(ctx)
	defer s.coord.Stop()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.reader.Close()
		case <-finished:
		}
	}()

	for ctx.Err() == nil {
		s.coord.ReapPass()
		s.coord.SetAtPrompt(true)
		line, err := s.reader.ReadLine()
		s.coord.SetAtPrompt(false)

		if errors.Is(err, ErrInterrupt) {
			s.coord.announceInterrupt()
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				break
			}
			s.terminate()
			return 1, fmt.Errorf("read input: %w", err)
		}
		if (err == nil || line != "") && s.Execute(line) {
			break
		}
		if err != nil {
			s.logger.Debug("end of input")
			break
		}
	}
	s.terminate()
	return 0, nil
}

// Execute handles one raw input line and reports whether it ended the
// session.
func (s *Shell) Execute(line string) bool {
	line = s.expander.ExpandLine(line)
	res, err := s.parser.Parse(line)
	if err != nil {
		metrics.IncParseError()
		s.logger.Debug("parse failed", "error", err)
		s.printf("smallsh: %v\n", err)
		return false
	}
	if res.Kind != parser.KindCommand {
		return false
	}

	inv := res.Invocation
	if isBuiltin(inv.Command) {
		return s.builtin(inv)
	}
	inv = inv.WithArgs(s.expander.Expand(inv.Args))
	if _, err := s.launcher.Launch(inv); err != nil {
		s.logger.Error("launch failed", "command", inv.Command, "error", err)
	}
	return false
}

func (s *Shell) terminate() {
	n := s.coord.Shutdown(s.grace)
	s.logger.Debug("shell terminated", "reaped", n)
}
