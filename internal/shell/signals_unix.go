//go:build !windows

package shell

import (
	"os"
	"syscall"
)

var (
	sigChild     os.Signal = syscall.SIGCHLD
	sigStop      os.Signal = syscall.SIGTSTP
	sigInterrupt os.Signal = syscall.SIGINT

	watched = []os.Signal{sigChild, sigStop, sigInterrupt}
)

const interruptNumber = int(syscall.SIGINT)
