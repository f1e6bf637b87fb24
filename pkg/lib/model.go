package lib

import (
	"github.com/slok/stepq/internal/model"
	"github.com/slok/stepq/internal/task"
)

// Task is a unit of work that the scheduler advances in small increments.
type Task = task.Task

// TaskContext is the opaque grouping token that isolates one caller's tasks
// from another's. Each Client owns one.
type TaskContext = model.Context

// Step pairs a diagnostics name with a synchronous unit of work.
type Step = task.Step

// StepFunc is a single synchronous unit of work inside a step sequence.
type StepFunc = task.StepFunc

// StepSequence is a Task that runs an ordered list of named synchronous
// steps, one step per tick.
type StepSequence = task.StepSequence

// StepSequenceConfig is the configuration for a StepSequence.
type StepSequenceConfig = task.StepSequenceConfig

// Operation pairs a diagnostics name with an asynchronous unit of work.
type Operation = task.Operation

// OperationFunc is a single asynchronous unit of work.
type OperationFunc = task.OperationFunc

// AsyncGroup is a Task that fires a collection of asynchronous operations and
// tracks their completion out-of-band.
type AsyncGroup = task.AsyncGroup

// AsyncGroupConfig is the configuration for an AsyncGroup.
type AsyncGroupConfig = task.AsyncGroupConfig

// Mode selects how an AsyncGroup launches its operations.
type Mode = task.Mode

const (
	// ModeParallel launches every operation together on the first tick.
	ModeParallel = task.ModeParallel
	// ModeSequential launches operations one at a time.
	ModeSequential = task.ModeSequential
)

// NewStepSequence creates a new step sequence task.
func NewStepSequence(cfg StepSequenceConfig) (*StepSequence, error) {
	return task.NewStepSequence(cfg)
}

// NewAsyncGroup creates a new async group task.
func NewAsyncGroup(cfg AsyncGroupConfig) (*AsyncGroup, error) {
	return task.NewAsyncGroup(cfg)
}

// NewStepTask is a convenience constructor for a step sequence built from a
// batch of named steps.
func NewStepTask(name string, steps ...Step) (*StepSequence, error) {
	return task.NewStepSequence(task.StepSequenceConfig{Name: name, Steps: steps})
}
