package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// SlogConfig selects level and rendering of shell diagnostics.
type SlogConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	Source     bool   `mapstructure:"source"`
}

// FileConfig describes the rotating log file. Rotation parameters follow
// lumberjack semantics.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// Config describes where shell diagnostics go. Shell stdout is never a
// destination: with no file and Stderr unset, logs are discarded.
type Config struct {
	Slog   SlogConfig `mapstructure:"slog"`
	File   FileConfig `mapstructure:"file"`
	Stderr bool       `mapstructure:"stderr"`
}

// Writer returns the configured destination and a closer for it.
func (c Config) Writer(stderr io.Writer) (io.Writer, io.Closer, error) {
	var ws []io.Writer
	var closer io.Closer = nopCloser{}
	if c.File.Path != "" {
		if dir := filepath.Dir(c.File.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		l := &lj.Logger{
			Filename:   c.File.Path,
			MaxSize:    valOr(c.File.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.File.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.File.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.File.Compress,
		}
		ws = append(ws, l)
		closer = l
	}
	if c.Stderr && stderr != nil {
		ws = append(ws, stderr)
	}
	switch len(ws) {
	case 0:
		return io.Discard, closer, nil
	case 1:
		return ws[0], closer, nil
	}
	return io.MultiWriter(ws...), closer, nil
}

// NewSlogger builds a *slog.Logger from the configuration. The returned
// closer flushes and closes the log file, if any.
func (c Config) NewSlogger(stderr io.Writer) (*slog.Logger, io.Closer, error) {
	w, closer, err := c.Writer(stderr)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(c.Slog.Level),
		AddSource: c.Slog.Source,
	}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}

	var h slog.Handler
	switch {
	case strings.EqualFold(c.Slog.Format, "json"):
		h = slog.NewJSONHandler(w, opts)
	case c.Slog.Color:
		h = NewColorTextHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
