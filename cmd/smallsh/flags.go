package main

import "time"

// RootFlags decouples cobra from the run logic for testing.
type RootFlags struct {
	ConfigPath string
	LogFile    string
	LogLevel   string
	LogStderr  bool
	History    string
	APIListen  string
	Prompt     string
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"log-file":   "log.file.path",
	"log-level":  "log.slog.level",
	"log-stderr": "log.stderr",
	"history":    "history.dsn",
	"api-listen": "api.listen",
	"prompt":     "prompt",
}

// ClientFlags configure the API client used by jobs, state and history.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
	CACert     string
	Insecure   bool
}

type HistoryFlags struct {
	Session string
	All     bool
	Limit   int
}
