package mocks

import (
	"context"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store type
type MockStore struct {
	mock.Mock
}

// ListUsers provides a mock function with given fields: ctx
func (_m *MockStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	ret := _m.Called(ctx)

	var r0 []*models.User
	if rf, ok := ret.Get(0).(func(context.Context) []*models.User); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.User)
	}

	return r0, ret.Error(1)
}

// ListFavoriteRoutes provides a mock function with given fields: ctx, userID
func (_m *MockStore) ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*models.RouteRecord
	if rf, ok := ret.Get(0).(func(context.Context, string) []*models.RouteRecord); ok {
		r0 = rf(ctx, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.RouteRecord)
	}

	return r0, ret.Error(1)
}
