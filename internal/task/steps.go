package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/stepq/internal/log"
)

// StepFunc is a single synchronous unit of work inside a step sequence.
type StepFunc func(ctx context.Context) error

// Step pairs a diagnostics name with a synchronous unit of work.
type Step struct {
	Name string
	Fn   StepFunc
}

// StepSequenceConfig is the configuration for a StepSequence.
type StepSequenceConfig struct {
	// Name identifies the task in diagnostics. Optional.
	Name string
	// Steps is the initial ordered list of steps. More can be appended with
	// AddStep until the first Run call.
	Steps []Step
	Logger log.Logger
}

func (c *StepSequenceConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.StepSequence"})

	return nil
}

// StepSequence is a Task that executes an ordered list of named synchronous
// steps, one step per Run call.
//
// Progress is the executed step count over the total step count. The cursor
// keeps advancing when Run is called past the end of the sequence, so
// Progress can exceed 1.0 on an over-driven task; callers treat anything at
// or above 1.0 as complete.
type StepSequence struct {
	id     string
	name   string
	logger log.Logger

	mu      sync.Mutex
	steps   []Step
	cursor  int
	started bool
}

// NewStepSequence creates a new step sequence task.
func NewStepSequence(cfg StepSequenceConfig) (*StepSequence, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StepSequence{
		id:     newTaskID(),
		name:   cfg.Name,
		steps:  cfg.Steps,
		logger: cfg.Logger,
	}, nil
}

// ID returns the unique task ID.
func (s *StepSequence) ID() string { return s.id }

// AddStep appends a step to the sequence. Steps can only be added before the
// first Run call, later additions are discarded with a diagnostics entry.
func (s *StepSequence) AddStep(name string, fn StepFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Warningf("Discarded step %q: %s already started", name, s)
		return
	}

	s.steps = append(s.steps, Step{Name: name, Fn: fn})
}

// Run executes the step at the cursor (if any remain) and advances the
// cursor. A step error is returned to the caller and leaves the cursor in
// place, so the same step runs again on the next call.
func (s *StepSequence) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	var step *Step
	if s.cursor < len(s.steps) {
		step = &s.steps[s.cursor]
	}
	s.mu.Unlock()

	// Run the step outside the lock, a step may take a while.
	if step != nil {
		s.logger.Debugf("Running step %q of %s", step.Name, s)
		if err := step.Fn(ctx); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}

	// The cursor advances whether or not a step remained.
	s.mu.Lock()
	s.cursor++
	s.mu.Unlock()

	return nil
}

// Progress returns the executed fraction of the sequence, 1.0 for an empty
// sequence.
func (s *StepSequence) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return 1.0
	}

	return float64(s.cursor) / float64(len(s.steps))
}

// Reset rewinds the sequence so the same steps can run again.
func (s *StepSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = 0
	s.started = false
}

func (s *StepSequence) String() string {
	if s.name != "" {
		return fmt.Sprintf("StepSequence(%s#%s)", s.name, s.id)
	}
	return fmt.Sprintf("StepSequence@%s", s.id)
}
