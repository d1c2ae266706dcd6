// Package prediction estimates travel speed and time for an arbitrary
// origin/destination pair from a precomputed model.
package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/BearBump/RouteWatch/internal/cache"
	"github.com/pkg/errors"
)

const (
	ConditionHeavy    = "Heavy"
	ConditionModerate = "Moderate"
	ConditionLight    = "Light"

	earthRadiusKm = 6371
	minSpeedKmh   = 0.1
)

var (
	ErrInvalidParams = errors.New("invalid or missing parameters")
	ErrModel         = errors.New("prediction failed")
)

// Query uses x for longitude and y for latitude.
type Query struct {
	FromX     float64 `json:"from_x"`
	FromY     float64 `json:"from_y"`
	ToX       float64 `json:"to_x"`
	ToY       float64 `json:"to_y"`
	Time      int     `json:"time"`
	IsWeekday int     `json:"is_weekday"`
}

// ParseQuery reads and validates the six query parameters.
func ParseQuery(v url.Values) (Query, error) {
	var q Query
	floats := []struct {
		name string
		dst  *float64
	}{{"from_x", &q.FromX}, {"from_y", &q.FromY}, {"to_x", &q.ToX}, {"to_y", &q.ToY}}
	for _, f := range floats {
		n, err := strconv.ParseFloat(v.Get(f.name), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Query{}, errors.Wrapf(ErrInvalidParams, "%s", f.name)
		}
		*f.dst = n
	}
	var err error
	if q.Time, err = strconv.Atoi(v.Get("time")); err != nil {
		return Query{}, errors.Wrap(ErrInvalidParams, "time")
	}
	if q.IsWeekday, err = strconv.Atoi(v.Get("is_weekday")); err != nil {
		return Query{}, errors.Wrap(ErrInvalidParams, "is_weekday")
	}
	return q, q.Validate()
}

func (q Query) Validate() error {
	switch q.Time {
	case 8, 14, 20:
	default:
		return errors.Wrap(ErrInvalidParams, "time must be 8, 14, or 20")
	}
	if q.IsWeekday != 0 && q.IsWeekday != 1 {
		return errors.Wrap(ErrInvalidParams, "is_weekday must be 0 or 1")
	}
	return nil
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("prediction:%g,%g,%g,%g,%d,%d", q.FromX, q.FromY, q.ToX, q.ToY, q.Time, q.IsWeekday)
}

// Model predicts a speed in km/h.
type Model interface {
	PredictSpeed(ctx context.Context, q Query, distanceKm float64) (float64, error)
	Source() string
}

type Result struct {
	RequestedParams            Query    `json:"requested_params"`
	PredictedSpeedKmh          float64  `json:"predicted_speed_kmh"`
	EstimatedCondition         string   `json:"estimated_condition"`
	SegmentDistanceKm          float64  `json:"segment_distance_km"`
	EstimatedTravelTimeMinutes *float64 `json:"estimated_travel_time_minutes"`
	Source                     string   `json:"source"`
}

type Service struct {
	model Model
	cache cache.BytesCache
	ttl   time.Duration
}

// New returns a service; c may be nil to disable caching.
func New(model Model, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{model: model, cache: c, ttl: ttl}
}

func (s *Service) Predict(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	key := q.cacheKey()
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("prediction cache get", "error", err.Error())
		} else if ok {
			var r Result
			if json.Unmarshal(b, &r) == nil {
				return r, nil
			}
		}
	}

	dist := Haversine(q.FromY, q.FromX, q.ToY, q.ToX)
	speed, err := s.model.PredictSpeed(ctx, q, dist)
	if err != nil {
		return Result{}, errors.Wrap(ErrModel, err.Error())
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return Result{}, errors.Wrap(ErrModel, "model returned a non-finite speed")
	}

	r := Result{
		RequestedParams:            q,
		PredictedSpeedKmh:          speed,
		EstimatedCondition:         Condition(speed),
		SegmentDistanceKm:          dist,
		EstimatedTravelTimeMinutes: TravelTimeMinutes(dist, speed),
		Source:                     s.model.Source(),
	}

	if s.cache != nil && s.ttl > 0 {
		if b, err := json.Marshal(r); err == nil {
			if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
				slog.Warn("prediction cache set", "error", err.Error())
			}
		}
	}
	return r, nil
}

// Haversine returns the great-circle distance in km between two lat/lng points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func Condition(speedKmh float64) string {
	switch {
	case speedKmh < 30:
		return ConditionHeavy
	case speedKmh < 50:
		return ConditionModerate
	default:
		return ConditionLight
	}
}

// TravelTimeMinutes is nil when the speed is too low to give a finite time.
func TravelTimeMinutes(distanceKm, speedKmh float64) *float64 {
	if speedKmh <= minSpeedKmh {
		return nil
	}
	m := distanceKm / speedKmh * 60
	return &m
}
