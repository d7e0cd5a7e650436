package process

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/loykin/smallsh/internal/metrics"
)

var ErrDuplicatePID = errors.New("pid already registered")

// Job is a background child that has not been reaped yet.
type Job struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Registry is the ordered set of live background children.
type Registry struct {
	mu   sync.Mutex
	jobs []Job
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Add(j Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(j.PID) >= 0 {
		return fmt.Errorf("%w: %d", ErrDuplicatePID, j.PID)
	}
	r.jobs = append(r.jobs, j)
	metrics.SetBackgroundRunning(len(r.jobs))
	return nil
}

// Remove drops pid and reports whether it was present.
func (r *Registry) Remove(pid int) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(pid)
	if i < 0 {
		return Job{}, false
	}
	j := r.jobs[i]
	r.jobs = slices.Delete(r.jobs, i, i+1)
	metrics.SetBackgroundRunning(len(r.jobs))
	return j, true
}

func (r *Registry) Contains(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(pid) >= 0
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Snapshot returns a copy in insertion order.
func (r *Registry) Snapshot() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.jobs)
}

func (r *Registry) PIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.PID
	}
	return out
}

func (r *Registry) indexLocked(pid int) int {
	for i, j := range r.jobs {
		if j.PID == pid {
			return i
		}
	}
	return -1
}
