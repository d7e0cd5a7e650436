package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/loykin/smallsh/internal/logger"
	"github.com/loykin/smallsh/internal/parser"
)

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "SMALLSH"

const (
	DefaultPrompt        = ": "
	DefaultShutdownGrace = 50 * time.Millisecond
	DefaultHistoryBuffer = 256
	DefaultAPIBasePath   = "/api"
)

var ErrInvalid = errors.New("invalid config")

// Config is the complete shell configuration.
type Config struct {
	Prompt        string        `mapstructure:"prompt"`
	MaxLineLength int           `mapstructure:"max_line_length" validate:"gte=0"`
	MaxArgs       int           `mapstructure:"max_args" validate:"gte=0"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"gte=0"`
	LegacyCDRoot  bool          `mapstructure:"legacy_cd_root"`
	Env           []string      `mapstructure:"env"`
	EnvFiles      []string      `mapstructure:"env_files"`

	History HistoryConfig `mapstructure:"history"`
	API     APIConfig     `mapstructure:"api"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     logger.Config `mapstructure:"log"`
}

type HistoryConfig struct {
	DSN    string `mapstructure:"dsn"`
	Buffer int    `mapstructure:"buffer" validate:"gte=0"`
}

type APIConfig struct {
	Listen   string    `mapstructure:"listen" validate:"omitempty,hostname_port"`
	BasePath string    `mapstructure:"base_path" validate:"omitempty,startswith=/"`
	TLS      TLSConfig `mapstructure:"tls"`
}

// TLSConfig serves the API over TLS. Either CertFile and KeyFile, or Dir
// holding tls.crt and tls.key, must be given. With AutoGenerate a missing
// pair in Dir is created as a self-signed certificate.
type TLSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file" validate:"required_with=KeyFile"`
	KeyFile      string `mapstructure:"key_file" validate:"required_with=CertFile"`
	Dir          string `mapstructure:"dir"`
	AutoGenerate bool   `mapstructure:"auto_generate"`
	MinVersion   string `mapstructure:"min_version" validate:"omitempty,oneof=1.2 1.3"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when no file or override is given.
func Default() Config {
	return Config{
		Prompt:        DefaultPrompt,
		MaxLineLength: parser.DefaultMaxLineLength,
		MaxArgs:       parser.DefaultMaxArgs,
		ShutdownGrace: DefaultShutdownGrace,
		History:       HistoryConfig{Buffer: DefaultHistoryBuffer},
		API:           APIConfig{BasePath: DefaultAPIBasePath},
		Log:           logger.Config{Slog: logger.SlogConfig{Level: "info", Format: "text"}},
	}
}

// Validate the configuration for basic semantic errors.
func (c Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i <= 0 {
			return fmt.Errorf("%w: env entry %q is not KEY=VALUE", ErrInvalid, kv)
		}
	}
	return nil
}

// Loader reads configuration through viper over an afero filesystem.
type Loader struct {
	fs afero.Fs
	v  *viper.Viper
}

// NewLoader returns a Loader reading from fs; nil means the OS filesystem.
func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return &Loader{fs: fs, v: v}
}

// Viper exposes the underlying instance so callers can bind flags.
func (l *Loader) Viper() *viper.Viper { return l.v }

func (l *Loader) Fs() afero.Fs { return l.fs }

// Load reads path (when non-empty), applies environment and bound-flag
// overrides and validates the result.
func (l *Loader) Load(path string) (Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			l.v.SetConfigType("toml")
		}
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("prompt", d.Prompt)
	v.SetDefault("max_line_length", d.MaxLineLength)
	v.SetDefault("max_args", d.MaxArgs)
	v.SetDefault("shutdown_grace", d.ShutdownGrace)
	v.SetDefault("legacy_cd_root", d.LegacyCDRoot)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("history.buffer", d.History.Buffer)
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.base_path", d.API.BasePath)
	v.SetDefault("api.tls.enabled", d.API.TLS.Enabled)
	v.SetDefault("api.tls.cert_file", d.API.TLS.CertFile)
	v.SetDefault("api.tls.key_file", d.API.TLS.KeyFile)
	v.SetDefault("api.tls.dir", d.API.TLS.Dir)
	v.SetDefault("api.tls.auto_generate", d.API.TLS.AutoGenerate)
	v.SetDefault("api.tls.min_version", d.API.TLS.MinVersion)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("log.stderr", d.Log.Stderr)
	v.SetDefault("log.slog.level", d.Log.Slog.Level)
	v.SetDefault("log.slog.format", d.Log.Slog.Format)
	v.SetDefault("log.slog.color", d.Log.Slog.Color)
	v.SetDefault("log.slog.timestamps", d.Log.Slog.TimeStamps)
	v.SetDefault("log.slog.source", d.Log.Slog.Source)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", d.Log.File.Compress)
}

// EnvOverrides returns the shell-level environment overrides: env_files in
// order, then the env list. Later entries win.
func (c Config) EnvOverrides(fs afero.Fs) ([]string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	var out []string
	for _, p := range c.EnvFiles {
		pairs, err := LoadEnvFile(fs, p)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return append(out, c.Env...), nil
}

// LoadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no
// quotes). Lines starting with # are ignored. Order is preserved.
func LoadEnvFile(fs afero.Fs, path string) ([]string, error) {
	b, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}
