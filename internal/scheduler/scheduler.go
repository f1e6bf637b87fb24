// Package scheduler contains the engine that advances registered tasks one
// small step per tick, round-robin fair across context groups.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/stepq/internal/log"
	"github.com/slok/stepq/internal/model"
	"github.com/slok/stepq/internal/task"
)

// DefaultPeriod is the default interval between automatic ticks.
const DefaultPeriod = 20 * time.Millisecond

// Config is the configuration for the Scheduler.
type Config struct {
	// Period is the interval between automatic ticks. Default: 20ms.
	Period time.Duration
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.Period < 0 {
		return fmt.Errorf("period must be positive: %w", model.ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scheduler.Scheduler"})

	return nil
}

// Scheduler drives registered tasks toward completion, one task step per
// tick, taking turns across contexts so no context starves another.
//
// Each context owns a FIFO queue of tasks. The contexts currently holding
// work form an ordered ring in first-seen order; every tick advances a cursor
// over that ring and runs one step of the task at the front of the selected
// context's queue. When no context holds work the automatic pump stops, and
// it restarts as soon as new work arrives.
//
// A Scheduler is safe for concurrent use.
type Scheduler struct {
	logger log.Logger

	mu      sync.Mutex
	queues  map[*model.Context][]task.Task
	ring    []*model.Context
	cursor  int
	period  time.Duration
	ticking bool
	stopCh  chan struct{} // Non-nil while the automatic pump is active.

	// pendingResume records a resume that arrived mid-tick (a step mutating
	// the scheduler re-entrantly). The tick applies it when it finishes so a
	// second pump is never installed while one tick is executing.
	pendingResume bool
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scheduler{
		logger: cfg.Logger,
		queues: map[*model.Context][]task.Task{},
		period: cfg.Period,
	}, nil
}

// AddTask appends t to c's queue, activating the context if it held no work,
// and restarts the automatic pump if it was stopped.
func (s *Scheduler) AddTask(t task.Task, c *model.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[c]; !ok {
		s.ring = append(s.ring, c)
	}
	s.queues[c] = append(s.queues[c], t)
	s.logger.Debugf("Queued %s on %s", taskName(t), c)

	s.resumeLocked()
}

// RemoveTask removes the first queued occurrence of t, whatever context it
// belongs to. Removing a task that is not queued anywhere is a no-op.
func (s *Scheduler) RemoveTask(t task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.stopCh != nil
	s.pauseLocked()
	defer func() {
		if wasRunning {
			s.resumeLocked()
		}
	}()

	for i, c := range s.ring {
		q := s.queues[c]
		for j, queued := range q {
			if queued != t {
				continue
			}

			q = append(q[:j], q[j+1:]...)
			if len(q) == 0 {
				s.dropContextLocked(i, c)
			} else {
				s.queues[c] = q
			}
			s.logger.Debugf("Removed %s from %s", taskName(t), c)
			return
		}
	}
}

// RemoveTasksForContext discards c's whole queue. Other contexts' queues and
// round-robin turns are unaffected.
func (s *Scheduler) RemoveTasksForContext(c *model.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.stopCh != nil
	s.pauseLocked()

	for i, rc := range s.ring {
		if rc == c {
			s.dropContextLocked(i, c)
			s.logger.Debugf("Cleared %s", c)
			break
		}
	}

	if wasRunning {
		s.resumeLocked()
	}
}

// HasTasksForContext returns true when c has at least one queued task.
func (s *Scheduler) HasTasksForContext(c *model.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.queues[c]
	return ok
}

// HasOutstanding returns true when any context has at least one queued task.
func (s *Scheduler) HasOutstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queues) > 0
}

// Update executes exactly one tick and reports whether outstanding work
// remains. The automatic pump calls it once per period; callers may also
// invoke it directly to drive the scheduler manually.
//
// When the pump is paused, or a tick is already executing, no task runs and
// Update only reports whether work is outstanding.
//
// A task error aborts the rest of the tick and is returned unchanged: the
// failed task is neither retired nor reset. There is no isolation between
// tasks, the caller decides what a fault means for the whole pump.
func (s *Scheduler) Update(ctx context.Context) (more bool, err error) {
	s.mu.Lock()

	if s.stopCh == nil || s.ticking {
		more = len(s.queues) > 0
		s.mu.Unlock()
		return more, nil
	}
	s.ticking = true

	defer func() {
		more = len(s.queues) > 0
		if !more {
			s.pauseLocked()
		}
		s.ticking = false
		if s.pendingResume {
			s.pendingResume = false
			if more {
				s.resumeLocked()
			}
		}
		s.mu.Unlock()
	}()

	if len(s.ring) == 0 {
		return more, nil
	}

	s.clampCursorLocked()
	c := s.ring[s.cursor]

	if q := s.queues[c]; len(q) > 0 {
		t := q[0]

		// Run the task body without holding the lock so a step can call back
		// into the scheduler; the in-tick guard keeps those calls from
		// installing a second pump mid-tick.
		s.mu.Unlock()
		runErr := t.Run(ctx)
		s.mu.Lock()

		if runErr != nil {
			return more, runErr
		}

		if t.Progress() >= 1.0 {
			// Retire from the front only, and only if a re-entrant removal
			// didn't already take the task away while the lock was released.
			if q := s.queues[c]; len(q) > 0 && q[0] == t {
				s.queues[c] = q[1:]
				s.logger.Debugf("Retired %s from %s", taskName(t), c)
			}
		}
	}

	if len(s.queues[c]) == 0 {
		// Covers a queue that was empty already and one that just drained.
		delete(s.queues, c)
		for i, rc := range s.ring {
			if rc == c {
				s.ring = append(s.ring[:i], s.ring[i+1:]...)
				break
			}
		}
		s.clampCursorLocked()
	} else {
		// The context still has work, move the round-robin turn along. The
		// cursor wraps by clamping at the start of the next tick.
		s.cursor++
	}

	return more, nil
}

// Pause stops the automatic pump. Queued work stays queued and manual Update
// calls report it but do not execute it until Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pauseLocked()
}

// Resume restarts the automatic pump. It is a no-op when there is no
// outstanding work, when a tick is executing, or when the pump is already
// active.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resumeLocked()
}

// Period returns the interval between automatic ticks.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.period
}

// SetPeriod changes the interval between automatic ticks. The new interval
// takes effect on the next scheduled tick; queued work is untouched.
func (s *Scheduler) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("period must be positive: %w", model.ErrNotValid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.stopCh != nil
	s.pauseLocked()
	s.period = d
	if wasRunning {
		s.resumeLocked()
	}

	return nil
}

func (s *Scheduler) pauseLocked() {
	s.pendingResume = false

	if s.stopCh == nil {
		return
	}

	close(s.stopCh)
	s.stopCh = nil
	s.logger.Debugf("Pump stopped")
}

func (s *Scheduler) resumeLocked() {
	if s.stopCh != nil || len(s.queues) == 0 {
		return
	}

	if s.ticking {
		s.pendingResume = true
		return
	}

	s.stopCh = make(chan struct{})
	go s.pump(s.stopCh, s.period)
	s.logger.Debugf("Pump started (period %s)", s.period)
}

// pump is the automatic tick source. One pump goroutine exists at most at any
// time, identified by the stop channel it was started with.
func (s *Scheduler) pump(stopCh chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Update stops the pump itself once the queues drain.
			_, err := s.Update(context.Background())
			if err != nil {
				// No isolation between tasks: a fault halts automatic
				// pumping. Callers decide whether to resume.
				s.logger.Errorf("Tick failed, pausing pump: %v", err)
				s.Pause()
				return
			}
		}
	}
}

// dropContextLocked removes the context at ring index i and its queue.
func (s *Scheduler) dropContextLocked(i int, c *model.Context) {
	delete(s.queues, c)
	s.ring = append(s.ring[:i], s.ring[i+1:]...)

	// Removing an earlier ring entry shifts the rest left; follow the shift
	// so the context whose turn is next keeps its turn.
	if i < s.cursor {
		s.cursor--
	}
	s.clampCursorLocked()
}

func (s *Scheduler) clampCursorLocked() {
	if s.cursor >= len(s.ring) {
		s.cursor = 0
	}
}

func taskName(t task.Task) string {
	if st, ok := t.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", t)
}
