package client

import "time"

// Job is a background child not yet reaped.
type Job struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Outcome is how a child finished: kind "exited" or "signaled" with the
// exit code or signal number.
type Outcome struct {
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

// State is the shell's mode and last foreground status.
type State struct {
	ForegroundOnly bool    `json:"foreground_only"`
	ForegroundPID  int     `json:"foreground_pid,omitempty"`
	LastStatus     Outcome `json:"last_status"`
	Background     int     `json:"background"`
}

// HistoryRecord is one recorded command lifecycle event.
type HistoryRecord struct {
	Session    string    `json:"session"`
	PID        int       `json:"pid"`
	Command    string    `json:"command"`
	Args       []string  `json:"args,omitempty"`
	Background bool      `json:"background"`
	StartedAt  time.Time `json:"started_at"`
	Outcome    string    `json:"outcome,omitempty"`
	Value      int       `json:"value,omitempty"`
}

type HistoryEvent struct {
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Record     HistoryRecord `json:"record"`
}

// HistoryQuery selects events. An empty Session means the shell's own
// session; All lists every session.
type HistoryQuery struct {
	Session string
	All     bool
	Limit   int
}

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

type historyResponse struct {
	Session string         `json:"session"`
	Events  []HistoryEvent `json:"events"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
