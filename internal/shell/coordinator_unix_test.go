//go:build !windows

package shell

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/smallsh/internal/parser"
	"github.com/loykin/smallsh/internal/process"
)

type finishedObserver struct {
	mu   sync.Mutex
	outs map[int]process.ExitOutcome
}

func (o *finishedObserver) Started(process.Job, []string, bool) {}

func (o *finishedObserver) Finished(job process.Job, _ bool, out process.ExitOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outs == nil {
		o.outs = map[int]process.ExitOutcome{}
	}
	o.outs[job.PID] = out
}

func (o *finishedObserver) get(pid int) (process.ExitOutcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outs[pid]
	return out, ok
}

func TestCoordinatorReapsOnChildExit(t *testing.T) {
	f := newFixture(t, nil, false)
	obs := &finishedObserver{}
	f.coord.SetObserver(obs)
	f.coord.Start(context.Background())
	defer f.coord.Stop()

	res, err := f.launcher.Launch(parser.Invocation{Command: "sleep", Args: []string{"0.2"}, Background: true})
	require.NoError(t, err)
	require.True(t, res.Background)

	eventually(t, 5*time.Second, func() bool { return f.launcher.Registry.Len() == 0 })
	assert.Contains(t, f.out.String(), fmt.Sprintf("\nBackground pid %d is done: exit value 0\n", res.PID))
	out, ok := obs.get(res.PID)
	require.True(t, ok)
	assert.Equal(t, process.ExitedWith(0), out)
}

func TestCoordinatorTogglesOnStopSignal(t *testing.T) {
	f := newFixture(t, nil, false)
	f.coord.Start(context.Background())
	defer f.coord.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTSTP))
	eventually(t, 2*time.Second, func() bool { return f.launcher.State.ForegroundOnly() })
	assert.Contains(t, f.out.String(), "Entering foreground-only mode")
}

func TestReapDropsForeignPID(t *testing.T) {
	f := newFixture(t, nil, false)
	require.NoError(t, f.launcher.Registry.Add(process.Job{PID: 1, Command: "init"}))

	assert.Zero(t, f.coord.ReapPass())
	assert.False(t, f.launcher.Registry.Contains(1))
	assert.Empty(t, f.out.String())
}

func TestShutdownIsQuiet(t *testing.T) {
	f := newFixture(t, nil, false)
	res, err := f.launcher.Launch(parser.Invocation{Command: "sleep", Args: []string{"30"}, Background: true})
	require.NoError(t, err)

	assert.Equal(t, 1, f.coord.Shutdown(500*time.Millisecond))
	assert.False(t, f.launcher.Registry.Contains(res.PID))
	assert.NotContains(t, f.out.String(), "is done")
}
