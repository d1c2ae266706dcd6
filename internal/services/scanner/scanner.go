package scanner

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/RouteWatch/internal/cache/rediscache"
	"github.com/BearBump/RouteWatch/internal/integrations/directions"
	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/BearBump/RouteWatch/internal/services/delay"
	"github.com/pkg/errors"
)

// PlaceholderAPIKey is the value shipped in sample configs.
const PlaceholderAPIKey = "YOUR_GOOGLE_MAPS_API_KEY_HERE_REPLACE_ME"

var ErrAPIKeyNotConfigured = errors.New("google maps api key is not configured")

type Store interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error)
}

// RateLimiter is a budget shared with other workers, per wall-clock minute.
type RateLimiter interface {
	Reserve(ctx context.Context, scope string, perMinute int64, now time.Time) (rediscache.Quota, error)
}

type Metrics interface {
	RecordRun(result string)
	RecordRoute(outcome string)
	RecordNotification(ok bool)
	ObserveDirectionsLatency(d time.Duration)
}

type Scanner struct {
	store      Store
	directions directions.Client
	sender     push.Sender
	rl         RateLimiter
	metrics    Metrics
	schedule   *Schedule

	apiKey        string
	requireAPIKey bool

	thresholdPercentage int
	concurrency         int
	sendTimeout         time.Duration
	rateLimitPerMinute  int64
	quotaBackoff        time.Duration
	runOnStart          bool

	now       func() time.Time
	triggerCh chan struct{}
	runMu     sync.Mutex

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	nextRunUnixNano     atomic.Int64
	totalRuns           atomic.Int64
	totalRoutes         atomic.Int64
	totalAlerts         atomic.Int64
	totalErrors         atomic.Int64
	running             atomic.Bool
	lastMu              sync.Mutex
	lastError           string
	lastSummary         *Summary
}

func New(store Store, dc directions.Client, sender push.Sender, rl RateLimiter, apiKey string) *Scanner {
	sched, _ := NewSchedule(DefaultTimezone, 0)
	if sched == nil {
		sched = &Schedule{Location: time.UTC}
	}
	return &Scanner{
		store: store, directions: dc, sender: sender, rl: rl, apiKey: apiKey,
		requireAPIKey:       true,
		schedule:            sched,
		thresholdPercentage: delay.DefaultThresholdPercentage,
		concurrency:         4,
		sendTimeout:         10 * time.Second,
		quotaBackoff:        time.Minute,
		now:                 time.Now,
		triggerCh:           make(chan struct{}, 1),
		startedAtUnixNano:   time.Now().UTC().UnixNano(),
	}
}

// WithSettings overrides the run parameters; zero values keep the defaults.
// A negative threshold is kept, it alerts on every route that has a sample.
func (s *Scanner) WithSettings(thresholdPercentage, concurrency int, sendTimeout time.Duration, rlPerMin int64) *Scanner {
	if thresholdPercentage != 0 {
		s.thresholdPercentage = thresholdPercentage
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if sendTimeout > 0 {
		s.sendTimeout = sendTimeout
	}
	if rlPerMin > 0 {
		s.rateLimitPerMinute = rlPerMin
	}
	return s
}

// WithThreshold sets the alert threshold as given, zero included.
func (s *Scanner) WithThreshold(percentage int) *Scanner {
	s.thresholdPercentage = percentage
	return s
}

func (s *Scanner) WithSchedule(sched *Schedule, runOnStart bool) *Scanner {
	if sched != nil {
		s.schedule = sched
	}
	s.runOnStart = runOnStart
	return s
}

// WithAPIKeyRequired toggles the api key check at the start of a run.
// Directions clients that never call google can run without a key.
func (s *Scanner) WithAPIKeyRequired(required bool) *Scanner {
	s.requireAPIKey = required
	return s
}

func (s *Scanner) WithMetrics(m Metrics) *Scanner {
	s.metrics = m
	return s
}

// APIKeyConfigured reports whether key looks like a real key.
func APIKeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// Trigger asks Run for an immediate scan (best-effort, non-blocking).
func (s *Scanner) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Run scans on every schedule firing and on Trigger until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	if s.runOnStart {
		s.runLogged(ctx)
	}
	for {
		next := s.schedule.NextRun(s.now())
		s.nextRunUnixNano.Store(next.UnixNano())
		t := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
			s.runLogged(ctx)
		case <-s.triggerCh:
			t.Stop()
			s.runLogged(ctx)
		}
	}
}

func (s *Scanner) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scan run failed", "error", err.Error())
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	NextRunAt     *time.Time `json:"nextRunAt,omitempty"`
	Running       bool       `json:"running"`
	TotalRuns     int64      `json:"totalRuns"`
	TotalRoutes   int64      `json:"totalRoutes"`
	TotalAlerts   int64      `json:"totalAlerts"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
	LastSummary   *Summary   `json:"lastSummary,omitempty"`
}

func (s *Scanner) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, s.startedAtUnixNano).UTC(),
		Running:     s.running.Load(),
		TotalRuns:   s.totalRuns.Load(),
		TotalRoutes: s.totalRoutes.Load(),
		TotalAlerts: s.totalAlerts.Load(),
		TotalErrors: s.totalErrors.Load(),
	}
	if n := s.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	if n := s.nextRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.NextRunAt = &t
	}
	s.lastMu.Lock()
	st.LastError = s.lastError
	if s.lastSummary != nil {
		cp := *s.lastSummary
		cp.Outcomes = nil
		st.LastSummary = &cp
	}
	s.lastMu.Unlock()
	return st
}

func (s *Scanner) setLastError(err error) {
	s.totalErrors.Add(1)
	s.lastMu.Lock()
	s.lastError = err.Error()
	s.lastMu.Unlock()
}
