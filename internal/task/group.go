package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/stepq/internal/log"
)

// Mode selects how an AsyncGroup launches its operations.
type Mode string

const (
	// ModeParallel launches every operation together on the first Run call.
	ModeParallel Mode = "parallel"
	// ModeSequential launches operations one at a time, each one starting
	// when the previous one completes.
	ModeSequential Mode = "sequential"
)

// OperationFunc is a single asynchronous unit of work. The group runs it on
// its own goroutine and records its completion when it returns.
type OperationFunc func(ctx context.Context) error

// Operation pairs a diagnostics name with an asynchronous unit of work.
type Operation struct {
	Name string
	Fn   OperationFunc
}

// AsyncGroupConfig is the configuration for an AsyncGroup.
type AsyncGroupConfig struct {
	// Name identifies the task in diagnostics. Optional.
	Name string
	// Mode selects parallel or sequential launching. Default: parallel.
	Mode Mode
	// Operations is the initial collection of operations. More can be added
	// with AddOperation until the first Run call.
	Operations []Operation
	Logger     log.Logger
}

func (c *AsyncGroupConfig) defaults() error {
	if c.Mode == "" {
		c.Mode = ModeParallel
	}
	if c.Mode != ModeParallel && c.Mode != ModeSequential {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.AsyncGroup"})

	return nil
}

// AsyncGroup is a Task that fires a collection of asynchronous operations and
// tracks their completion.
//
// Run is a one-shot trigger: the first call launches the operations and every
// later call is a no-op. The scheduler never waits on the operations, it only
// observes Progress on later ticks while the group's own bookkeeping counts
// completions out-of-band.
type AsyncGroup struct {
	id     string
	name   string
	mode   Mode
	logger log.Logger

	mu        sync.Mutex
	ops       []Operation
	started   bool
	completed int
	gen       uint64
	firstErr  error
}

// NewAsyncGroup creates a new async group task.
func NewAsyncGroup(cfg AsyncGroupConfig) (*AsyncGroup, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &AsyncGroup{
		id:     newTaskID(),
		name:   cfg.Name,
		mode:   cfg.Mode,
		ops:    cfg.Operations,
		logger: cfg.Logger,
	}, nil
}

// ID returns the unique task ID.
func (g *AsyncGroup) ID() string { return g.id }

// Mode returns the launch mode of the group.
func (g *AsyncGroup) Mode() Mode { return g.mode }

// AddOperation adds an operation to the group. Operations can only be added
// before the first Run call, later additions are discarded with a diagnostics
// entry.
func (g *AsyncGroup) AddOperation(name string, fn OperationFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		g.logger.Warningf("Discarded operation %q: %s already started", name, g)
		return
	}

	g.ops = append(g.ops, Operation{Name: name, Fn: fn})
}

// Run launches the group's operations on the first call and does nothing on
// later calls.
func (g *AsyncGroup) Run(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return nil
	}
	g.started = true

	if len(g.ops) == 0 {
		return nil
	}

	ops := make([]Operation, len(g.ops))
	copy(ops, g.ops)
	gen := g.gen

	g.logger.Debugf("Launching %d operations of %s (%s)", len(ops), g, g.mode)

	switch g.mode {
	case ModeSequential:
		go g.runSequential(ctx, gen, ops)
	default:
		for _, op := range ops {
			go g.runOne(ctx, gen, op)
		}
	}

	return nil
}

func (g *AsyncGroup) runOne(ctx context.Context, gen uint64, op Operation) {
	g.operationDone(gen, op.Name, op.Fn(ctx))
}

func (g *AsyncGroup) runSequential(ctx context.Context, gen uint64, ops []Operation) {
	for _, op := range ops {
		if !g.operationDone(gen, op.Name, op.Fn(ctx)) {
			// The group was reset while this cycle was in flight, stop the chain.
			return
		}
	}
}

// operationDone records an operation completion. It returns false when the
// completion belongs to a run cycle that has since been reset.
func (g *AsyncGroup) operationDone(gen uint64, name string, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen {
		g.logger.Debugf("Ignored completion of %q from a previous run cycle of %s", name, g)
		return false
	}

	g.completed++
	if err != nil {
		// The operation ran on its own goroutine, there is nobody left to
		// return this error to. Keep the first one and count the operation as
		// completed so the group can still retire.
		g.logger.Errorf("Operation %q of %s failed: %v", name, g, err)
		if g.firstErr == nil {
			g.firstErr = err
		}
	}

	return true
}

// Progress returns the completed fraction of the group, 1.0 for an empty
// group.
func (g *AsyncGroup) Progress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.ops) == 0 {
		return 1.0
	}

	return float64(g.completed) / float64(len(g.ops))
}

// Err returns the first error reported by an operation in the current run
// cycle, nil when every completed operation succeeded.
func (g *AsyncGroup) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.firstErr
}

// Reset rewinds the group so the same operations can run again. Completions
// from operations still in flight from the previous cycle are ignored.
func (g *AsyncGroup) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.started = false
	g.completed = 0
	g.firstErr = nil
	g.gen++
}

func (g *AsyncGroup) String() string {
	if g.name != "" {
		return fmt.Sprintf("AsyncGroup(%s#%s)", g.name, g.id)
	}
	return fmt.Sprintf("AsyncGroup@%s", g.id)
}
