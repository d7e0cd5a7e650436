package process

import (
	"encoding/json"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitOutcomeString(t *testing.T) {
	assert.Equal(t, "exit value 0", ExitedWith(0).String())
	assert.Equal(t, "exit value 1", ExitedWith(1).String())
	assert.Equal(t, "terminated by signal 15", SignaledBy(15).String())
	assert.True(t, ExitedWith(0).Success())
	assert.False(t, SignaledBy(0).Success())
}

func TestExitOutcomeJSON(t *testing.T) {
	b, err := json.Marshal(SignaledBy(9))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"signaled","value":9}`, string(b))

	var got ExitOutcome
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"exited","value":3}`), &got))
	assert.Equal(t, ExitedWith(3), got)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"stopped"}`), &got))
}

type fakeStatus struct {
	exited, signaled bool
	code             int
	sig              int
}

func (f fakeStatus) Exited() bool          { return f.exited }
func (f fakeStatus) ExitStatus() int       { return f.code }
func (f fakeStatus) Signaled() bool        { return f.signaled }
func (f fakeStatus) Signal() syscall.Signal { return syscall.Signal(f.sig) }

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, ExitedWith(4), outcomeOf(fakeStatus{exited: true, code: 4}))
	assert.Equal(t, SignaledBy(2), outcomeOf(fakeStatus{signaled: true, sig: 2, code: -1}))
}
