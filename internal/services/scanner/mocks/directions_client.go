package mocks

import (
	"context"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockDirectionsClient is a mock type for the directions.Client type
type MockDirectionsClient struct {
	mock.Mock
}

// FetchTraffic provides a mock function with given fields: ctx, origin, destination
func (_m *MockDirectionsClient) FetchTraffic(ctx context.Context, origin models.Coordinate, destination models.Coordinate) (models.TrafficSample, error) {
	ret := _m.Called(ctx, origin, destination)

	var r0 models.TrafficSample
	if rf, ok := ret.Get(0).(func(context.Context, models.Coordinate, models.Coordinate) models.TrafficSample); ok {
		r0 = rf(ctx, origin, destination)
	} else {
		r0 = ret.Get(0).(models.TrafficSample)
	}

	return r0, ret.Error(1)
}
