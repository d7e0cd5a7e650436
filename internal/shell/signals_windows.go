//go:build windows

package shell

import (
	"os"
	"syscall"
)

// Windows has no child or stop signals; only the interrupt is watched and
// background children are reaped by the pre-prompt pass.
var (
	sigChild     os.Signal
	sigStop      os.Signal
	sigInterrupt os.Signal = os.Interrupt

	watched = []os.Signal{sigInterrupt}
)

const interruptNumber = int(syscall.SIGINT)
