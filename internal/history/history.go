package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventExit  EventType = "exit"
)

// Record is one command run by the shell. Outcome and Value are set on exit
// events only.
type Record struct {
	Session    string    `json:"session"`
	PID        int       `json:"pid"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	Background bool      `json:"background"`
	StartedAt  time.Time `json:"started_at"`
	Outcome    string    `json:"outcome,omitempty"`
	Value      int       `json:"value"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Lister is implemented by sinks that can read events back.
type Lister interface {
	List(ctx context.Context, session string, limit int) ([]Event, error)
}
