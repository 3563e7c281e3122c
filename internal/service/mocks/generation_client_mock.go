package mocks

import (
	"context"

	"chronicle-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockGenerationClient is a mock type for the GenerationClient type
type MockGenerationClient struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockGenerationClient) Generate(ctx context.Context, req service.GenerationRequest) (*service.GenerationResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *service.GenerationResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, service.GenerationRequest) (*service.GenerationResult, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, service.GenerationRequest) *service.GenerationResult); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.GenerationResult)
	}

	if rf, ok := ret.Get(1).(func(context.Context, service.GenerationRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ModelName provides a mock function with no fields
func (_m *MockGenerationClient) ModelName() string {
	ret := _m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// NewMockGenerationClient creates a new instance of MockGenerationClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockGenerationClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGenerationClient {
	m := &MockGenerationClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.GenerationClient = (*MockGenerationClient)(nil)
