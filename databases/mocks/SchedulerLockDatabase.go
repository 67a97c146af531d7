package mocks

import (
	context "context"
	time "time"

	mock "github.com/stretchr/testify/mock"
)

// SchedulerLockDatabase is an autogenerated mock type for the SchedulerLockDatabase type
type SchedulerLockDatabase struct {
	mock.Mock
}

// TryAcquireLock provides a mock function with given fields: ctx, name, owner, ttl
func (_m *SchedulerLockDatabase) TryAcquireLock(ctx context.Context, name string, owner string, ttl time.Duration) (bool, error) {
	ret := _m.Called(ctx, name, owner, ttl)
	return ret.Bool(0), ret.Error(1)
}

// ReleaseLock provides a mock function with given fields: ctx, name, owner
func (_m *SchedulerLockDatabase) ReleaseLock(ctx context.Context, name string, owner string) error {
	ret := _m.Called(ctx, name, owner)
	return ret.Error(0)
}
