package mocks

import (
	"context"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock type for the Repository type
type MockRepository struct {
	mock.Mock
}

// ListFavoriteRoutes provides a mock function with given fields: ctx, userID
func (_m *MockRepository) ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*models.RouteRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.RouteRecord)
	}

	return r0, ret.Error(1)
}

// AddFavoriteRoute provides a mock function with given fields: ctx, rec
func (_m *MockRepository) AddFavoriteRoute(ctx context.Context, rec models.RouteRecord) (*models.RouteRecord, error) {
	ret := _m.Called(ctx, rec)

	var r0 *models.RouteRecord
	if rf, ok := ret.Get(0).(func(context.Context, models.RouteRecord) *models.RouteRecord); ok {
		r0 = rf(ctx, rec)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.RouteRecord)
	}

	return r0, ret.Error(1)
}

// DeleteFavoriteRoute provides a mock function with given fields: ctx, userID, routeID
func (_m *MockRepository) DeleteFavoriteRoute(ctx context.Context, userID string, routeID string) error {
	ret := _m.Called(ctx, userID, routeID)
	return ret.Error(0)
}

// SetFCMToken provides a mock function with given fields: ctx, userID, token
func (_m *MockRepository) SetFCMToken(ctx context.Context, userID string, token string) error {
	ret := _m.Called(ctx, userID, token)
	return ret.Error(0)
}

// UpsertUser provides a mock function with given fields: ctx, userID, attrs
func (_m *MockRepository) UpsertUser(ctx context.Context, userID string, attrs map[string]any) error {
	ret := _m.Called(ctx, userID, attrs)
	return ret.Error(0)
}
