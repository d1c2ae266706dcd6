package mocks

import (
	"context"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock type for the push.Sender type
type MockSender struct {
	mock.Mock
}

// Send provides a mock function with given fields: ctx, deviceToken, n
func (_m *MockSender) Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error {
	ret := _m.Called(ctx, deviceToken, n)
	return ret.Error(0)
}
