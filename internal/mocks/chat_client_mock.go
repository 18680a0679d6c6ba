package mocks

import (
	"context"

	"fairytale-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockChatClient is a mock type for the ChatClient type
type MockChatClient struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, req
func (_m *MockChatClient) Complete(ctx context.Context, req service.CompletionRequest) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, req)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, service.CompletionRequest) string); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.String(0)
	}

	var r1 service.UsageInfo
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}
	return r0, r1, ret.Error(2)
}

// NewMockChatClient creates a new instance of MockChatClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockChatClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChatClient {
	m := &MockChatClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.ChatClient = (*MockChatClient)(nil)
