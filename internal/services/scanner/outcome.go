package scanner

import (
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
)

type OutcomeKind string

const (
	// OutcomeOK: traffic fetched, delay under the threshold.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeAlerted: threshold crossed; NotifyErr holds the send result.
	OutcomeAlerted OutcomeKind = "alerted"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// RouteOutcome is what happened to one route in one run.
type RouteOutcome struct {
	Kind      OutcomeKind
	Reason    string
	Err       error
	UserID    string
	RouteID   string
	RouteName string
	Decision  models.AlertDecision
	NotifyErr error
}

type Summary struct {
	RunID               string         `json:"runId"`
	StartedAt           time.Time      `json:"startedAt"`
	Duration            time.Duration  `json:"duration"`
	UsersProcessed      int            `json:"usersProcessed"`
	UsersSkipped        int            `json:"usersSkipped"`
	UsersFailed         int            `json:"usersFailed"`
	RoutesChecked       int            `json:"routesChecked"`
	RoutesSkipped       int            `json:"routesSkipped"`
	RoutesFailed        int            `json:"routesFailed"`
	Alerts              int            `json:"alerts"`
	NotificationsSent   int            `json:"notificationsSent"`
	NotificationsFailed int            `json:"notificationsFailed"`
	Outcomes            []RouteOutcome `json:"-"`
}

func (s *Summary) add(o RouteOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Kind {
	case OutcomeOK:
		s.RoutesChecked++
	case OutcomeAlerted:
		s.RoutesChecked++
		s.Alerts++
		if o.NotifyErr != nil {
			s.NotificationsFailed++
		} else {
			s.NotificationsSent++
		}
	case OutcomeSkipped:
		s.RoutesSkipped++
	case OutcomeFailed:
		s.RoutesFailed++
	}
}

// Outcome returns the recorded outcome for routeID, if any.
func (s Summary) Outcome(routeID string) (RouteOutcome, bool) {
	for _, o := range s.Outcomes {
		if o.RouteID == routeID {
			return o, true
		}
	}
	return RouteOutcome{}, false
}
