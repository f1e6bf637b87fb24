// Package taskmock contains mocks of the task package contracts.
package taskmock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTask is a mock implementation of task.Task.
type MockTask struct {
	mock.Mock
}

// Run satisfies task.Task.
func (m *MockTask) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Progress satisfies task.Task.
func (m *MockTask) Progress() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

// Reset satisfies task.Task.
func (m *MockTask) Reset() {
	m.Called()
}
