//go:build !windows

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrNotChild is returned when pid is no longer a child of this process.
var ErrNotChild = errors.New("not a child process")

// TryReap performs a non-blocking wait on pid. It reports false while the child
// is still running.
func TryReap(pid int) (ExitOutcome, bool, error) {
	var ws unix.WaitStatus
	for {
		got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return ExitOutcome{}, false, fmt.Errorf("%w: %d", ErrNotChild, pid)
		case err != nil:
			return ExitOutcome{}, false, fmt.Errorf("wait4 %d: %w", pid, err)
		case got == 0:
			return ExitOutcome{}, false, nil
		}
		return outcomeOf(ws), true, nil
	}
}

// Interrupt sends SIGINT to pid.
func Interrupt(pid int) error {
	return unix.Kill(pid, unix.SIGINT)
}

// Alive reports whether pid exists and can be signalled.
func Alive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}
