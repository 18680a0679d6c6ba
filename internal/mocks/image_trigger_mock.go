package mocks

import (
	"fairytale-server/internal/trigger"
	"fairytale-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockImageTrigger is a mock type for the ImageTrigger type
type MockImageTrigger struct {
	mock.Mock
}

// Fire provides a mock function with given fields: task
func (_m *MockImageTrigger) Fire(task models.ImageTask) {
	_m.Called(task)
}

// NewMockImageTrigger creates a new instance of MockImageTrigger.
func NewMockImageTrigger(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockImageTrigger {
	m := &MockImageTrigger{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ trigger.ImageTrigger = (*MockImageTrigger)(nil)
