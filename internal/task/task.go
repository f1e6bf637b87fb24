// Package task contains the units of work the scheduler drives: the Task
// contract and its two implementations, a synchronous step sequence and an
// asynchronous operation group.
package task

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Task is a unit of work that the scheduler advances in small increments.
type Task interface {
	// Run advances the task by exactly one unit of internal work. It must do
	// a bounded, small amount of work: the scheduler calls it once per tick
	// and a slow Run blocks every other task in the process. Run is safe to
	// call repeatedly, including after the task has completed.
	Run(ctx context.Context) error

	// Progress reports how complete the task is. The scheduler retires a task
	// the first time Progress reaches 1.0. A task with no registered work is
	// trivially complete and reports 1.0.
	Progress() float64

	// Reset returns the task to its initial state so it can run again with
	// the same registered work.
	Reset()
}

// newTaskID returns a new unique task ID used in diagnostics.
func newTaskID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
