package shell

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/smallsh/internal/env"
	"github.com/loykin/smallsh/internal/expand"
	"github.com/loykin/smallsh/internal/parser"
	"github.com/loykin/smallsh/internal/process"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix only")
	}
}

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

type fixture struct {
	shell    *Shell
	coord    *Coordinator
	launcher *process.Launcher
	env      *env.Env
	out      *lockedBuffer
	childOut func() string
}

// newFixture wires a shell reading input. Children write to a temp file so
// the transcript only holds the shell's own output.
func newFixture(t *testing.T, input io.Reader, legacyCDRoot bool) *fixture {
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

	buf := &lockedBuffer{}
	out := NewSyncWriter(buf)
	e := env.FromOS()
	reg := process.NewRegistry()
	st := process.NewState()

	l := &process.Launcher{
		Registry: reg,
		State:    st,
		Out:      out,
		Stdin:    devnull,
		Stdout:   stdout,
		Stderr:   stdout,
		Env:      e,
	}
	coord := NewCoordinator(reg, st, out)
	sh, err := New(Config{
		Reader:        NewPromptReader(input, out, ": "),
		Out:           out,
		Parser:        parser.New(parser.DefaultMaxLineLength, parser.DefaultMaxArgs),
		Expander:      expand.New(e, os.Getpid()),
		Launcher:      l,
		Coordinator:   coord,
		Env:           e,
		LegacyCDRoot:  legacyCDRoot,
		ShutdownGrace: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{
		shell:    sh,
		coord:    coord,
		launcher: l,
		env:      e,
		out:      buf,
		childOut: func() string {
			b, err := os.ReadFile(stdout.Name())
			if err != nil {
				t.Fatalf("read child stdout: %v", err)
			}
			return string(b)
		},
	}
}

func lines(ls ...string) io.Reader {
	return strings.NewReader(strings.Join(ls, "\n") + "\n")
}

// eventually polls cond until it holds or within elapses.
func eventually(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", within)
}
