package scanner

import (
	"time"

	"github.com/pkg/errors"
)

const DefaultTimezone = "Europe/Istanbul"

// Schedule fires once an hour at Minute past the hour in Location,
// the same as the cron line "<Minute> * * * *".
type Schedule struct {
	Location *time.Location
	Minute   int
}

func NewSchedule(timezone string, minute int) (*Schedule, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", timezone)
	}
	if minute < 0 || minute > 59 {
		return nil, errors.Errorf("schedule minute out of range: %d", minute)
	}
	return &Schedule{Location: loc, Minute: minute}, nil
}

// NextRun returns the first firing strictly after now.
func (s *Schedule) NextRun(now time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), s.Minute, 0, 0, loc)
	for !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}
