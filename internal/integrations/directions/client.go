package directions

import (
	"context"
	"fmt"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/pkg/errors"
)

type Client interface {
	FetchTraffic(ctx context.Context, origin, destination models.Coordinate) (models.TrafficSample, error)
}

type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindTransport  ErrorKind = "transport"
	KindHTTPStatus ErrorKind = "http_status"
	KindAPIStatus  ErrorKind = "api_status"
	KindMalformed  ErrorKind = "malformed"
)

// Error is returned by every Client implementation when a lookup fails.
type Error struct {
	Kind ErrorKind
	// Status is the upstream "status" field or the HTTP status code.
	Status  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("directions %s", e.Kind)
	if e.Status != "" {
		msg += " status=" + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the failure class of err, or "" when err is not a directions error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
