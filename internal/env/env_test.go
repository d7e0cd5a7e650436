package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPrefersOverrides(t *testing.T) {
	e := FromList([]string{"HOME=/home/a", "EMPTY=", "=bad", "noequals"})

	v, ok := e.Lookup("HOME")
	require.True(t, ok)
	assert.Equal(t, "/home/a", v)

	e.Set("HOME", "/tmp/b")
	v, _ = e.Lookup("HOME")
	assert.Equal(t, "/tmp/b", v)

	e.Unset("HOME")
	v, _ = e.Lookup("HOME")
	assert.Equal(t, "/home/a", v)

	v, ok = e.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = e.Lookup("noequals")
	assert.False(t, ok)
	_, ok = e.Lookup("")
	assert.False(t, ok)
}

func TestFromOS(t *testing.T) {
	t.Setenv("SMALLSH_ENV_TEST", "value")
	e := FromOS()
	v, ok := e.Lookup("SMALLSH_ENV_TEST")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestMergeOrder(t *testing.T) {
	e := FromList([]string{"A=1", "B=2"})
	e.Set("B", "override")
	out := e.Merge([]string{"C=3", "A=per", "=skip"})
	assert.Equal(t, []string{"A=per", "B=override", "C=3"}, out)
}
