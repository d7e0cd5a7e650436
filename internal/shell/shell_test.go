package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/loykin/smallsh/internal/process"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func assertTranscript(t *testing.T, got string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "transcript", []byte(got))
}

func runFixture(t *testing.T, f *fixture) int {
	t.Helper()
	code, err := f.shell.Run(context.Background())
	require.NoError(t, err)
	return code
}

func TestTranscriptBuiltins(t *testing.T) {
	f := newFixture(t, lines("status", "# comment", "", "cd /smallsh-no-such-dir", "exit"), false)
	assert.Equal(t, 0, runFixture(t, f))
	assertTranscript(t, f.out.String())
}

func TestTranscriptParseErrors(t *testing.T) {
	f := newFixture(t, lines("cat <", "&", "status"), false)
	assert.Equal(t, 0, runFixture(t, f))
	assertTranscript(t, f.out.String())
}

func TestTranscriptStatus(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, lines("false", "status", "nosuchcmd-smallsh", "status", "exit"), false)
	assert.Equal(t, 0, runFixture(t, f))
	assertTranscript(t, f.out.String())
}

func TestExitIsExactWord(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, lines("exitnow", "exit"), false)
	assert.Equal(t, 0, runFixture(t, f))
	assert.Contains(t, f.out.String(), "exitnow: No such file or directory")
}

func TestEOFWithoutNewline(t *testing.T) {
	f := newFixture(t, strings.NewReader("status"), false)
	assert.Equal(t, 0, runFixture(t, f))
	assert.Equal(t, ": exit value 0\n", f.out.String())
}

func TestRedirectAndExpansion(t *testing.T) {
	requireUnix(t)
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, false)
	f.env.Set("SMALLSH_GREETING", "hello")

	assert.False(t, f.shell.Execute("echo SMALLSH_GREETING $$ > out.txt"))
	b, err := os.ReadFile("out.txt")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("hello %d\n", os.Getpid()), string(b))
	assert.Empty(t, f.out.String())

	assert.False(t, f.shell.Execute("wc -w < out.txt"))
	assert.Equal(t, "2", strings.TrimSpace(f.childOut()))
}

func TestTestdirMacro(t *testing.T) {
	requireUnix(t)
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, false)

	f.shell.Execute("mkdir testdir$$")
	_, err := os.Stat("testdir" + strconv.Itoa(os.Getpid()))
	assert.NoError(t, err)
}

func TestCD(t *testing.T) {
	root := t.TempDir()
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "home", "sub"), 0o755))
	t.Chdir(root)

	f := newFixture(t, nil, false)
	f.env.Set("HOME", filepath.Join(root, "home"))

	cwd := func() string {
		wd, err := os.Getwd()
		require.NoError(t, err)
		wd, err = filepath.EvalSymlinks(wd)
		require.NoError(t, err)
		return wd
	}

	f.shell.Execute("cd")
	assert.Equal(t, filepath.Join(root, "home"), cwd())
	pwd, _ := f.env.Lookup("PWD")
	assert.Equal(t, cwd(), pwd)

	f.shell.Execute("cd sub")
	assert.Equal(t, filepath.Join(root, "home", "sub"), cwd())

	f.shell.Execute("cd " + root)
	assert.Equal(t, root, cwd())

	f.shell.Execute("cd ~/sub")
	assert.Equal(t, filepath.Join(root, "home", "sub"), cwd())

	f.shell.Execute("cd missing")
	assert.Equal(t, filepath.Join(root, "home", "sub"), cwd())
	assert.Contains(t, f.out.String(), "Directory:missing not found.\n")

	f.shell.Execute("cd a b")
	assert.Contains(t, f.out.String(), "cd: too many arguments\n")
}

func TestResolveDir(t *testing.T) {
	withHome := func(name string) (string, bool) {
		if name == "HOME" {
			return "/home/u", true
		}
		return "", false
	}
	noHome := func(string) (string, bool) { return "", false }

	tests := []struct {
		name    string
		args    []string
		lookup  func(string) (string, bool)
		legacy  bool
		want    string
		wantErr error
	}{
		{"bare", nil, withHome, false, "/home/u", nil},
		{"tilde", []string{"~"}, withHome, false, "/home/u", nil},
		{"tilde path", []string{"~/src"}, withHome, false, "/home/u/src", nil},
		{"absolute", []string{"/tmp"}, withHome, false, "/tmp", nil},
		{"legacy root", []string{"/tmp"}, withHome, true, "/home/u/tmp", nil},
		{"relative", []string{"src/x"}, withHome, false, "src/x", nil},
		{"relative without home", []string{".."}, noHome, false, "..", nil},
		{"bare without home", nil, noHome, false, "", ErrHomeNotSet},
		{"legacy without home", []string{"/tmp"}, noHome, true, "", ErrHomeNotSet},
		{"too many", []string{"a", "b"}, withHome, false, "", ErrTooManyCDArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDir(tt.args, tt.lookup, tt.legacy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinsIgnoreRedirectAndBackground(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, false)

	f.shell.Execute("status > status.txt &")
	assert.Equal(t, "exit value 0\n", f.out.String())
	_, err := os.Stat("status.txt")
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, f.launcher.Registry.Len())
}

var bgStarted = regexp.MustCompile(`Background pid is (\d+)\n`)

func TestBackgroundLifecycle(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, nil, false)

	f.shell.Execute("sleep 0.1 &")
	m := bgStarted.FindStringSubmatch(f.out.String())
	require.NotNil(t, m, "output: %q", f.out.String())
	pid, _ := strconv.Atoi(m[1])
	assert.True(t, f.launcher.Registry.Contains(pid))

	eventually(t, 5*time.Second, func() bool { return f.coord.ReapPass() == 1 })
	assert.False(t, f.launcher.Registry.Contains(pid))
	assert.Contains(t, f.out.String(), fmt.Sprintf("\nBackground pid %d is done: exit value 0\n", pid))

	// Removed exactly once.
	assert.Zero(t, f.coord.ReapPass())
	assert.Equal(t, 1, strings.Count(f.out.String(), "is done"))
}

func TestForegroundOnlyIgnoresAmpersand(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, nil, false)

	assert.True(t, f.coord.Toggle())
	f.shell.Execute("true &")
	out := f.out.String()
	assert.Contains(t, out, "\nEntering foreground-only mode (& is now ignored)\n")
	assert.NotContains(t, out, "Background pid")
	assert.Zero(t, f.launcher.Registry.Len())

	assert.False(t, f.coord.Toggle())
	assert.Contains(t, f.out.String(), "\nExiting foreground-only mode\n")
}

func TestExitInterruptsBackgroundChildren(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, lines("sleep 30 &", "exit"), false)

	assert.Equal(t, 0, runFixture(t, f))
	assert.Zero(t, f.launcher.Registry.Len())
	assert.NotContains(t, f.out.String(), "is done")
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	f := newFixture(t, pr, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _ := f.shell.Run(ctx)
		done <- code
	}()

	eventually(t, 2*time.Second, func() bool { return f.out.String() == ": " })
	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseErrorUsesLimits(t *testing.T) {
	f := newFixture(t, nil, false)
	f.shell.Execute(strings.Repeat("x", 3000))
	assert.True(t, strings.HasPrefix(f.out.String(), "smallsh: line too long"), f.out.String())
}

func TestLaunchRecordsStatus(t *testing.T) {
	requireUnix(t)
	f := newFixture(t, nil, false)
	f.shell.Execute("false")
	assert.Equal(t, process.ExitedWith(1), f.launcher.State.LastStatus())
	f.shell.Execute("true")
	assert.True(t, f.launcher.State.LastStatus().Success())
}
