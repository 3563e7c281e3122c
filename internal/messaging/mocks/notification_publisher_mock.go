package mocks

import (
	"context"

	"chronicle-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockNotificationPublisher is a mock type for the NotificationPublisher type
type MockNotificationPublisher struct {
	mock.Mock
}

// Publish provides a mock function with given fields: ctx, payload
func (_m *MockNotificationPublisher) Publish(ctx context.Context, payload messaging.StoryNotificationPayload) error {
	ret := _m.Called(ctx, payload)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, messaging.StoryNotificationPayload) error); ok {
		r0 = rf(ctx, payload)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockNotificationPublisher creates a new instance of MockNotificationPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockNotificationPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotificationPublisher {
	m := &MockNotificationPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ messaging.NotificationPublisher = (*MockNotificationPublisher)(nil)
