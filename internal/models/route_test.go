package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestParseFavoriteRoute_OK(t *testing.T) {
	r, err := ParseFavoriteRoute(RouteRecord{
		ID:             "r1",
		UserID:         "u1",
		Name:           s("Home to work"),
		OriginLat:      f(41.0082),
		OriginLng:      f(28.9784),
		DestinationLat: f(41.0151),
		DestinationLng: f(29.0),
	})
	require.NoError(t, err)
	require.Equal(t, "Home to work", r.Name)
	require.Equal(t, "41.0082,28.9784", r.Origin.String())
	require.Equal(t, "41.0151,29", r.Destination.String())
}

func TestParseFavoriteRoute_DefaultName(t *testing.T) {
	for _, name := range []*string{nil, s("")} {
		r, err := ParseFavoriteRoute(RouteRecord{
			ID: "r1", Name: name,
			OriginLat: f(1), OriginLng: f(2), DestinationLat: f(3), DestinationLng: f(4),
		})
		require.NoError(t, err)
		require.Equal(t, DefaultRouteName, r.Name)
	}
}

func TestParseFavoriteRoute_MissingCoordinate(t *testing.T) {
	full := func() RouteRecord {
		return RouteRecord{ID: "r", OriginLat: f(1), OriginLng: f(2), DestinationLat: f(3), DestinationLng: f(4)}
	}
	cases := map[string]func(*RouteRecord){
		"origin lat":      func(r *RouteRecord) { r.OriginLat = nil },
		"origin lng":      func(r *RouteRecord) { r.OriginLng = nil },
		"destination lat": func(r *RouteRecord) { r.DestinationLat = nil },
		"destination lng": func(r *RouteRecord) { r.DestinationLng = nil },
		"nan":             func(r *RouteRecord) { r.OriginLat = f(math.NaN()) },
		"inf":             func(r *RouteRecord) { r.DestinationLng = f(math.Inf(1)) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := full()
			mutate(&rec)
			r, err := ParseFavoriteRoute(rec)
			require.ErrorIs(t, err, ErrIncompleteCoordinates)
			require.Equal(t, DefaultRouteName, r.Name)
		})
	}
}
