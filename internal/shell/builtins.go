package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/parser"
)

const (
	builtinExit   = "exit"
	builtinStatus = "status"
	builtinCD     = "cd"
)

var (
	ErrHomeNotSet    = errors.New("cd: HOME not set")
	ErrTooManyCDArgs = errors.New("cd: too many arguments")
)

// isBuiltin matches the exact command word.
func isBuiltin(cmd string) bool {
	switch cmd {
	case builtinExit, builtinStatus, builtinCD:
		return true
	}
	return false
}

// builtin runs inv in the shell process and reports whether the loop should
// terminate. Redirections and the background marker are ignored.
func (s *Shell) builtin(inv parser.Invocation) bool {
	metrics.IncBuiltin(inv.Command)
	switch inv.Command {
	case builtinExit:
		return true
	case builtinStatus:
		s.printf("exit value %d\n", s.state.LastStatus().Value)
	case builtinCD:
		s.changeDir(inv.Args)
	}
	return false
}

func (s *Shell) changeDir(args []string) {
	dir, err := resolveDir(args, s.lookup, s.legacyCDRoot)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	if err := os.Chdir(dir); err != nil {
		s.logger.Debug("chdir failed", "dir", dir, "error", err)
		s.printf("Directory:%s not found.\n", dir)
		return
	}
	if s.env != nil {
		if wd, err := os.Getwd(); err == nil {
			s.env.Set("PWD", wd)
		}
	}
}

// resolveDir maps cd's arguments to a target directory. With legacyRoot an
// argument starting with '/' is taken relative to HOME.
func resolveDir(args []string, lookup func(string) (string, bool), legacyRoot bool) (string, error) {
	if len(args) > 1 {
		return "", ErrTooManyCDArgs
	}
	home := func() (string, error) {
		h, ok := lookup("HOME")
		if !ok || h == "" {
			return "", ErrHomeNotSet
		}
		return h, nil
	}
	if len(args) == 0 || args[0] == "~" {
		return home()
	}
	arg := args[0]
	switch {
	case strings.HasPrefix(arg, "~/"):
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, arg[2:]), nil
	case strings.HasPrefix(arg, "/") && legacyRoot:
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, arg), nil
	}
	return arg, nil
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
