package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/stepq/internal/log"
	"github.com/slok/stepq/internal/model"
	"github.com/slok/stepq/internal/scheduler"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} gives an unlabeled context on the shared process-wide scheduler.
type Config struct {
	// Label names the client's grouping context in diagnostics output.
	// Default: unlabeled.
	Label string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Period is the interval between automatic ticks. When set on a shared
	// client it reconfigures the shared scheduler for the whole process.
	// Default: keep the scheduler's current period (20ms initially).
	Period time.Duration

	// Standalone gives the client its own private scheduler instead of the
	// shared process-wide one. Tasks on a standalone client are not
	// interleaved with other clients' tasks. Mostly useful in tests and when
	// driving the pump manually.
	Standalone bool
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Period < 0 {
		return fmt.Errorf("period must be positive: %w", model.ErrNotValid)
	}

	return nil
}

// Client is a per-context handle on the scheduler.
//
// Every client owns one fresh grouping context; tasks submitted through the
// client belong to that context and take round-robin turns against every
// other context on the same scheduler. A Client is safe for concurrent use.
type Client struct {
	sched  *scheduler.Scheduler
	tctx   *model.Context
	logger log.Logger
}

// New creates a new SDK client with its own grouping context.
//
// By default the client attaches to the shared process-wide scheduler, so
// work from all clients is interleaved fairly. There is nothing to close: the
// context simply stops being scheduled once its tasks are done or cleared.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Standalone {
		s, err := scheduler.New(scheduler.Config{Period: cfg.Period, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create scheduler: %w", err)
		}
		sched = s
	} else {
		sched = scheduler.Default()
		if cfg.Period != 0 {
			if err := sched.SetPeriod(cfg.Period); err != nil {
				return nil, fmt.Errorf("could not set period: %w", err)
			}
		}
	}

	return &Client{
		sched:  sched,
		tctx:   model.NewContext(cfg.Label),
		logger: cfg.Logger,
	}, nil
}

// Context returns the client's grouping context token, useful in diagnostics.
func (c *Client) Context() *TaskContext { return c.tctx }

// AddTask submits a task under the client's context. If the pump was idle it
// starts ticking again.
func (c *Client) AddTask(t Task) {
	c.sched.AddTask(t, c.tctx)
}

// RemoveTask withdraws a previously submitted task so it receives no further
// ticks. Removing a task that was never submitted (or already retired) is a
// no-op.
func (c *Client) RemoveTask(t Task) {
	c.sched.RemoveTask(t)
}

// Clear withdraws every task submitted under the client's context. Other
// clients' tasks are unaffected.
func (c *Client) Clear() {
	c.sched.RemoveTasksForContext(c.tctx)
}

// HasTasks returns true while the client's context has queued tasks.
func (c *Client) HasTasks() bool {
	return c.sched.HasTasksForContext(c.tctx)
}

// HasOutstanding returns true while any context on the client's scheduler has
// queued tasks.
func (c *Client) HasOutstanding() bool {
	return c.sched.HasOutstanding()
}

// Update drives the scheduler's pump manually by exactly one tick and reports
// whether outstanding work remains. See the scheduler semantics: a tick runs
// one step of one task, across all contexts, not only this client's.
func (c *Client) Update(ctx context.Context) (bool, error) {
	return c.sched.Update(ctx)
}

// Pause stops the automatic pump of the client's scheduler.
func (c *Client) Pause() {
	c.sched.Pause()
}

// Resume restarts the automatic pump if there is outstanding work.
func (c *Client) Resume() {
	c.sched.Resume()
}

// Period returns the interval between automatic ticks.
func (c *Client) Period() time.Duration {
	return c.sched.Period()
}

// SetPeriod changes the interval between automatic ticks, effective on the
// next scheduled tick.
func (c *Client) SetPeriod(d time.Duration) error {
	return c.sched.SetPeriod(d)
}
