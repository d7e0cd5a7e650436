package shell

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptReader(t *testing.T) {
	out := &lockedBuffer{}
	r := NewPromptReader(strings.NewReader("ls -l\r\nexit\nlast"), out, ": ")

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ls -l", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "exit", line)

	line, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "last", line)

	line, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, line)

	assert.Equal(t, ": : : : ", out.String())
}

func TestPromptReaderClose(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewPromptReader(pr, nil, "")

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err := r.ReadLine()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(nil))
	f, err := os.CreateTemp(t.TempDir(), "notty")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
