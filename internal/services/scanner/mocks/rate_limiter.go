package mocks

import (
	"context"
	"time"

	"github.com/BearBump/RouteWatch/internal/cache/rediscache"
	"github.com/stretchr/testify/mock"
)

// MockRateLimiter is a mock type for the RateLimiter type
type MockRateLimiter struct {
	mock.Mock
}

// Reserve provides a mock function with given fields: ctx, scope, perMinute, now
func (_m *MockRateLimiter) Reserve(ctx context.Context, scope string, perMinute int64, now time.Time) (rediscache.Quota, error) {
	ret := _m.Called(ctx, scope, perMinute, now)
	return ret.Get(0).(rediscache.Quota), ret.Error(1)
}
