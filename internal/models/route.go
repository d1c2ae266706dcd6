package models

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// DefaultRouteName is used when a stored route has no display name.
const DefaultRouteName = "Favorite Route"

// AlertTypeTraffic tags the data block of a traffic alert notification.
const AlertTypeTraffic = "traffic_alert"

var ErrIncompleteCoordinates = errors.New("route has invalid or incomplete coordinates")

type User struct {
	ID         string
	FCMToken   string
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RouteRecord is a favorite route as it is stored. Every field a client may
// omit is a pointer; use ParseFavoriteRoute before evaluating traffic.
type RouteRecord struct {
	ID                 string
	UserID             string
	Name               *string
	OriginLat          *float64
	OriginLng          *float64
	DestinationLat     *float64
	DestinationLng     *float64
	OriginAddress      string
	DestinationAddress string
	CreatedAt          time.Time
}

type Coordinate struct {
	Lat float64
	Lng float64
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

type FavoriteRoute struct {
	ID          string
	UserID      string
	Name        string
	Origin      Coordinate
	Destination Coordinate
}

// ParseFavoriteRoute turns a stored record into a route eligible for traffic
// evaluation. All four coordinates must be present and finite.
func ParseFavoriteRoute(rec RouteRecord) (FavoriteRoute, error) {
	name := DefaultRouteName
	if rec.Name != nil && *rec.Name != "" {
		name = *rec.Name
	}
	route := FavoriteRoute{ID: rec.ID, UserID: rec.UserID, Name: name}

	coords := []*float64{rec.OriginLat, rec.OriginLng, rec.DestinationLat, rec.DestinationLng}
	for _, c := range coords {
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			return route, ErrIncompleteCoordinates
		}
	}
	route.Origin = Coordinate{Lat: *rec.OriginLat, Lng: *rec.OriginLng}
	route.Destination = Coordinate{Lat: *rec.DestinationLat, Lng: *rec.DestinationLng}
	return route, nil
}

// TrafficSample is a single directions lookup. Durations are in seconds.
type TrafficSample struct {
	TypicalSeconds int64
	LiveSeconds    int64
}

type DelayMetrics struct {
	DelaySeconds    int64
	DelayMinutes    int64
	DelayPercentage float64
}

type AlertDecision struct {
	Metrics DelayMetrics
	Alert   bool
}

type NotificationPayload struct {
	Title string
	Body  string
	Data  map[string]string
}
