package process

import (
	"sync"
	"sync/atomic"

	"github.com/loykin/smallsh/internal/metrics"
)

// State is the per-run shell state shared by the loop, the launcher and the
// signal coordinator.
type State struct {
	fgOnly atomic.Bool
	fgPID  atomic.Int64

	mu   sync.Mutex
	last ExitOutcome
}

// NewState returns a State with foreground-only off and a last status of
// exit value 0.
func NewState() *State { return &State{last: ExitedWith(0)} }

func (s *State) ForegroundOnly() bool { return s.fgOnly.Load() }

func (s *State) SetForegroundOnly(on bool) {
	s.fgOnly.Store(on)
	metrics.SetForegroundOnly(on)
}

// ToggleForegroundOnly flips the flag and returns the new value.
func (s *State) ToggleForegroundOnly() bool {
	for {
		old := s.fgOnly.Load()
		if s.fgOnly.CompareAndSwap(old, !old) {
			metrics.SetForegroundOnly(!old)
			return !old
		}
	}
}

func (s *State) LastStatus() ExitOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *State) SetLastStatus(o ExitOutcome) {
	s.mu.Lock()
	s.last = o
	s.mu.Unlock()
}

// ForegroundPID is the pid of the child the shell is waiting on, or 0.
func (s *State) ForegroundPID() int { return int(s.fgPID.Load()) }

func (s *State) setForegroundPID(pid int) { s.fgPID.Store(int64(pid)) }
