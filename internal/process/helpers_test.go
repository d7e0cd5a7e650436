package process

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix only")
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []Job
	finished []ExitOutcome
}

func (o *recordingObserver) Started(job Job, _ []string, _ bool) {
	o.mu.Lock()
	o.started = append(o.started, job)
	o.mu.Unlock()
}

func (o *recordingObserver) Finished(_ Job, _ bool, out ExitOutcome) {
	o.mu.Lock()
	o.finished = append(o.finished, out)
	o.mu.Unlock()
}

// newTestLauncher returns a launcher whose children write to a temp file.
func newTestLauncher(t *testing.T) (*Launcher, *lockedBuffer, func() string) {
	t.Helper()
	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	if err != nil {
		t.Fatalf("create stdout: %v", err)
	}
	t.Cleanup(func() { _ = stdout.Close() })
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	t.Cleanup(func() { _ = devnull.Close() })

	msgs := &lockedBuffer{}
	l := &Launcher{
		Registry: NewRegistry(),
		State:    NewState(),
		Out:      msgs,
		Stdin:    devnull,
		Stdout:   stdout,
		Stderr:   stdout,
	}
	childOut := func() string {
		b, err := os.ReadFile(stdout.Name())
		if err != nil {
			t.Fatalf("read child stdout: %v", err)
		}
		return string(b)
	}
	return l, msgs, childOut
}

// reapEventually polls TryReap until pid is done or the deadline passes.
func reapEventually(t *testing.T, pid int, within time.Duration) ExitOutcome {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		out, done, err := TryReap(pid)
		if err != nil {
			t.Fatalf("TryReap(%d): %v", pid, err)
		}
		if done {
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = Interrupt(pid)
	t.Fatalf("pid %d not reaped within %v", pid, within)
	return ExitOutcome{}
}
