package process

import (
	"fmt"
	"syscall"
)

type OutcomeKind int

const (
	Exited OutcomeKind = iota
	Signaled
)

func (k OutcomeKind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *OutcomeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exited":
		*k = Exited
	case "signaled":
		*k = Signaled
	default:
		return fmt.Errorf("unknown outcome kind %q", b)
	}
	return nil
}

// ExitOutcome is how a child terminated: an exit code or a signal number.
type ExitOutcome struct {
	Kind  OutcomeKind `json:"kind"`
	Value int         `json:"value"`
}

func ExitedWith(code int) ExitOutcome { return ExitOutcome{Kind: Exited, Value: code} }

func SignaledBy(sig int) ExitOutcome { return ExitOutcome{Kind: Signaled, Value: sig} }

func (o ExitOutcome) String() string {
	if o.Kind == Signaled {
		return fmt.Sprintf("terminated by signal %d", o.Value)
	}
	return fmt.Sprintf("exit value %d", o.Value)
}

// Success reports a zero exit code.
func (o ExitOutcome) Success() bool { return o.Kind == Exited && o.Value == 0 }

// waitStatus is the subset shared by syscall.WaitStatus and unix.WaitStatus.
type waitStatus interface {
	Exited() bool
	ExitStatus() int
	Signaled() bool
	Signal() syscall.Signal
}

func outcomeOf(ws waitStatus) ExitOutcome {
	if ws.Signaled() {
		return SignaledBy(int(ws.Signal()))
	}
	return ExitedWith(ws.ExitStatus())
}
