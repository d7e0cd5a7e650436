package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stdio struct {
	in, out, err *os.File
}

func newStdio(t *testing.T, script string) stdio {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(in, []byte(script), 0o600))
	var s stdio
	var err error
	s.in, err = os.Open(in)
	require.NoError(t, err)
	s.out, err = os.Create(filepath.Join(dir, "out"))
	require.NoError(t, err)
	s.err, err = os.Create(filepath.Join(dir, "err"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.in.Close()
		_ = s.out.Close()
		_ = s.err.Close()
	})
	return s
}

func (s stdio) stdout(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(s.out.Name())
	require.NoError(t, err)
	return string(b)
}

func TestHelp(t *testing.T) {
	s := newStdio(t, "")
	root, _ := buildRoot(s.in, s.out, s.err)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "smallsh")
	assert.Contains(t, buf.String(), "--history")
}

func TestVersion(t *testing.T) {
	s := newStdio(t, "")
	root, _ := buildRoot(s.in, s.out, s.err)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "smallsh dev\n", buf.String())
}

func TestRunExitsWithShellCode(t *testing.T) {
	s := newStdio(t, "status\nexit\n")
	root, cmd := buildRoot(s.in, s.out, s.err)
	root.SetArgs([]string{})
	require.NoError(t, root.Execute())
	assert.Equal(t, 0, cmd.code)
	assert.Equal(t, ": exit value 0\n: ", s.stdout(t))
}

func TestFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "smallsh.toml")
	require.NoError(t, os.WriteFile(conf, []byte("prompt = \"> \"\n"), 0o600))
	logFile := filepath.Join(dir, "logs", "smallsh.log")

	s := newStdio(t, "exit\n")
	root, _ := buildRoot(s.in, s.out, s.err)
	root.SetArgs([]string{"--config", conf, "--prompt", "$ ", "--log-file", logFile, "--log-level", "debug"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "$ ", s.stdout(t))

	b, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "shell starting")
}

func TestConfigFilePrompt(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "smallsh.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("prompt: \"% \"\n"), 0o600))

	s := newStdio(t, "exit\n")
	root, _ := buildRoot(s.in, s.out, s.err)
	root.SetArgs([]string{"--config", conf})
	require.NoError(t, root.Execute())
	assert.Equal(t, "% ", s.stdout(t))
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(conf, []byte("max_args = -1\n"), 0o600))

	s := newStdio(t, "exit\n")
	root, _ := buildRoot(s.in, s.out, s.err)
	root.SetArgs([]string{"--config", conf})
	err := root.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid config"), err.Error())
}

func TestRunWithHistory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix true")
	}
	dir := t.TempDir()
	s := newStdio(t, "true\nexit\n")
	root, cmd := buildRoot(s.in, s.out, s.err)
	root.SetArgs([]string{"--history", filepath.Join(dir, "h.db")})
	require.NoError(t, root.Execute())
	assert.Equal(t, 0, cmd.code)
	_, err := os.Stat(filepath.Join(dir, "h.db"))
	assert.NoError(t, err)
}
