package lib_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stepq/pkg/lib"
)

// newManualClient returns a standalone client whose automatic ticks never
// fire, so tests drive it with Update.
func newManualClient(t *testing.T, label string) *lib.Client {
	t.Helper()
	client, err := lib.New(lib.Config{Standalone: true, Period: time.Hour, Label: label})
	require.NoError(t, err)
	return client
}

func drain(t *testing.T, client *lib.Client) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		more, err := client.Update(ctx)
		require.NoError(t, err)
		if !more {
			return
		}
	}
	t.Fatal("client did not drain")
}

func TestNewInvalidConfig(t *testing.T) {
	client, err := lib.New(lib.Config{Period: -time.Second})
	require.Error(t, err)
	require.Nil(t, client)
}

func TestClientManualPump(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newManualClient(t, "test")

	var ran []string
	seq, err := lib.NewStepTask("report",
		lib.Step{Name: "s1", Fn: func(context.Context) error { ran = append(ran, "s1"); return nil }},
		lib.Step{Name: "s2", Fn: func(context.Context) error { ran = append(ran, "s2"); return nil }},
	)
	require.NoError(err)

	client.AddTask(seq)
	assert.True(client.HasTasks())
	assert.True(client.HasOutstanding())

	drain(t, client)

	assert.Equal([]string{"s1", "s2"}, ran)
	assert.False(client.HasTasks())
	assert.False(client.HasOutstanding())
}

func TestClientClear(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newManualClient(t, "test")

	var ran []string
	for _, name := range []string{"t1", "t2"} {
		seq, err := lib.NewStepTask(name,
			lib.Step{Name: "s1", Fn: func(context.Context) error { ran = append(ran, name); return nil }},
		)
		require.NoError(err)
		client.AddTask(seq)
	}

	client.Clear()

	assert.False(client.HasTasks())
	drain(t, client)
	assert.Empty(ran)
}

func TestClientRemoveTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newManualClient(t, "test")

	var ran []string
	keep, err := lib.NewStepTask("keep",
		lib.Step{Name: "s1", Fn: func(context.Context) error { ran = append(ran, "keep"); return nil }},
	)
	require.NoError(err)
	removed, err := lib.NewStepTask("removed",
		lib.Step{Name: "s1", Fn: func(context.Context) error { ran = append(ran, "removed"); return nil }},
	)
	require.NoError(err)

	client.AddTask(removed)
	client.AddTask(keep)
	client.RemoveTask(removed)

	drain(t, client)

	assert.Equal([]string{"keep"}, ran)
}

func TestClientContextLabel(t *testing.T) {
	client := newManualClient(t, "imports")
	assert.Equal(t, "imports", client.Context().Label())
	assert.Contains(t, client.Context().String(), "imports")
}

func TestSharedClientsInterleave(t *testing.T) {
	require := require.New(t)

	// Clients without Standalone share the process-wide scheduler, so both
	// workloads complete under the same automatic pump.
	c1, err := lib.New(lib.Config{Label: "shared-1", Period: 2 * time.Millisecond})
	require.NoError(err)
	c2, err := lib.New(lib.Config{Label: "shared-2"})
	require.NoError(err)

	var mu sync.Mutex
	var ran []string
	addWork := func(client *lib.Client, name string) {
		seq, err := lib.NewStepTask(name,
			lib.Step{Name: "s1", Fn: func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				ran = append(ran, name)
				return nil
			}},
		)
		require.NoError(err)
		client.AddTask(seq)
	}

	addWork(c1, "w1")
	addWork(c2, "w2")

	require.Eventually(func() bool {
		return !c1.HasTasks() && !c2.HasTasks()
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch([]string{"w1", "w2"}, ran)
}
