//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

var ErrNotChild = errors.New("not a child process")

var errUnsupported = errors.New("non-blocking reap is not supported on windows")

func TryReap(pid int) (ExitOutcome, bool, error) {
	return ExitOutcome{}, false, fmt.Errorf("%w: %d", errUnsupported, pid)
}

func Interrupt(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func Alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
