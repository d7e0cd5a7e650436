package process

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/loykin/smallsh/internal/env"
	"github.com/loykin/smallsh/internal/metrics"
	"github.com/loykin/smallsh/internal/parser"
)

// ErrSpawn is a start failure that is not attributable to the command
// itself, such as process table or memory exhaustion.
var ErrSpawn = errors.New("spawn failed")

const (
	ModeForeground = "foreground"
	ModeBackground = "background"
)

// Observer is notified of child lifecycle transitions.
type Observer interface {
	Started(job Job, args []string, background bool)
	Finished(job Job, background bool, out ExitOutcome)
}

// Result describes one launch. PID is zero when no child was started.
type Result struct {
	PID        int
	Background bool
	Outcome    ExitOutcome
}

// Launcher starts invocations as child processes.
type Launcher struct {
	Registry *Registry
	State    *State
	// Out receives the shell's own messages. Each message is a single Write.
	Out io.Writer
	// Stdin, Stdout and Stderr are inherited by children unless redirected.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// Env, when set, supplies the child environment.
	Env      *env.Env
	Observer Observer
	Logger   *slog.Logger
}

func (l *Launcher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Launcher) printf(format string, args ...any) {
	if l.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(l.Out, format, args...)
}

// Launch runs inv. Command-level failures are reported on Out and recorded
// as exit value 1; only ErrSpawn is returned.
func (l *Launcher) Launch(inv parser.Invocation) (Result, error) {
	background := inv.Background && !l.State.ForegroundOnly()
	mode := ModeForeground
	if background {
		mode = ModeBackground
	}
	log := l.logger().With("command", inv.Command, "mode", mode)

	rd, err := openRedirects(inv.InputRedirect, inv.OutputRedirect)
	if err != nil {
		log.Debug("redirect failed", "error", err)
		if errors.Is(err, ErrRedirectInput) {
			l.printf("%s\n", msgInputFailed)
		} else {
			l.printf("%s\n", msgOutputFailed)
		}
		return l.failed(background), nil
	}

	cmd := l.command(inv, rd)
	err = cmd.Start()
	rd.close()
	if err != nil {
		if notRunnable(err) {
			log.Debug("exec failed", "error", err)
			l.printf("%s: No such file or directory\n", inv.Command)
			return l.failed(background), nil
		}
		log.Error("start failed", "error", err)
		l.printf("fork failed: %v\n", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	pid := cmd.Process.Pid
	job := Job{PID: pid, Command: inv.Command, StartedAt: time.Now()}
	metrics.IncLaunch(mode)
	if l.Observer != nil {
		l.Observer.Started(job, inv.Args, background)
	}
	log.Debug("started", "pid", pid)

	if background {
		l.printf("Background pid is %d\n", pid)
		if err := l.Registry.Add(job); err != nil {
			log.Warn("register background child", "error", err)
		}
		_ = cmd.Process.Release()
		return Result{PID: pid, Background: true}, nil
	}

	out := l.wait(cmd)
	l.State.SetLastStatus(out)
	metrics.IncExit(mode, out.Kind.String())
	if l.Observer != nil {
		l.Observer.Finished(job, false, out)
	}
	if out.Kind == Signaled {
		l.printf("terminated by signal %d\n", out.Value)
	}
	log.Debug("finished", "pid", pid, "outcome", out.String())
	return Result{PID: pid, Outcome: out}, nil
}

func (l *Launcher) command(inv parser.Invocation, rd redirects) *exec.Cmd {
	cmd := exec.Command(inv.Command, inv.Args...)
	cmd.Stdin = orFile(rd.in, l.Stdin, os.Stdin)
	cmd.Stdout = orFile(rd.out, l.Stdout, os.Stdout)
	cmd.Stderr = orFile(nil, l.Stderr, os.Stderr)
	if l.Env != nil {
		cmd.Env = l.Env.Merge(nil)
	}
	return cmd
}

// wait blocks on exactly this child.
func (l *Launcher) wait(cmd *exec.Cmd) ExitOutcome {
	l.State.setForegroundPID(cmd.Process.Pid)
	start := time.Now()
	defer func() {
		l.State.setForegroundPID(0)
		metrics.ObserveForegroundDuration(time.Since(start).Seconds())
	}()

	err := cmd.Wait()
	if ps := cmd.ProcessState; ps != nil {
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
			return outcomeOf(ws)
		}
		return ExitedWith(ps.ExitCode())
	}
	l.logger().Warn("wait failed", "pid", cmd.Process.Pid, "error", err)
	return ExitedWith(1)
}

func (l *Launcher) failed(background bool) Result {
	out := ExitedWith(1)
	if !background {
		l.State.SetLastStatus(out)
	}
	return Result{Background: background, Outcome: out}
}

// notRunnable reports errors caused by the command itself.
func notRunnable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.EISDIR)
}

func orFile(first, second, fallback *os.File) *os.File {
	if first != nil {
		return first
	}
	if second != nil {
		return second
	}
	return fallback
}
