package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/RouteWatch/internal/integrations/directions"
	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/BearBump/RouteWatch/internal/services/delay"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const quotaScope = "directions"

type routeJob struct {
	token string
	route models.FavoriteRoute
}

type userTally struct {
	processed, skipped, failed int
}

// RunOnce performs one full scan. Per-user and per-route failures end up in
// the summary; only a missing API key, a failed user listing and context
// cancellation are returned as errors. On cancellation the partial summary
// is returned alongside ctx.Err().
func (s *Scanner) RunOnce(ctx context.Context) (Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	started := s.now()
	sum := Summary{RunID: uuid.NewString(), StartedAt: started.UTC()}
	s.lastRunUnixNano.Store(started.UnixNano())
	log := slog.With("run_id", sum.RunID)

	if s.requireAPIKey && !APIKeyConfigured(s.apiKey) {
		log.Error("traffic scan aborted: google maps api key is not configured")
		s.finish(&sum, started, "not_configured", ErrAPIKeyNotConfigured)
		return sum, ErrAPIKeyNotConfigured
	}

	log.Info("traffic scan started", "threshold_percentage", s.thresholdPercentage, "concurrency", s.concurrency)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		err = errors.Wrap(err, "list users")
		log.Error("traffic scan aborted", "error", err.Error())
		s.finish(&sum, started, "error", err)
		return sum, err
	}

	jobs := make(chan routeJob)
	results := make(chan RouteOutcome)
	tallyCh := make(chan userTally, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		tallyCh <- s.produce(ctx, log, users, jobs, results)
	}()

	var workers sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok || ctx.Err() != nil {
						return
					}
					results <- s.processRoute(ctx, log, job)
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		workers.Wait()
		close(results)
	}()

	for o := range results {
		sum.add(o)
		if s.metrics != nil {
			s.metrics.RecordRoute(string(o.Kind))
			if o.Kind == OutcomeAlerted {
				s.metrics.RecordNotification(o.NotifyErr == nil)
			}
		}
	}

	t := <-tallyCh
	sum.UsersProcessed, sum.UsersSkipped, sum.UsersFailed = t.processed, t.skipped, t.failed

	result, runErr := "ok", error(nil)
	if ctx.Err() != nil {
		result, runErr = "canceled", ctx.Err()
	}
	s.finish(&sum, started, result, runErr)

	log.Info("traffic scan finished",
		"users_processed", sum.UsersProcessed,
		"users_skipped", sum.UsersSkipped,
		"users_failed", sum.UsersFailed,
		"routes_checked", sum.RoutesChecked,
		"routes_skipped", sum.RoutesSkipped,
		"routes_failed", sum.RoutesFailed,
		"alerts", sum.Alerts,
		"notifications_sent", sum.NotificationsSent,
		"notifications_failed", sum.NotificationsFailed,
		"duration", sum.Duration.String(),
		"canceled", runErr != nil,
	)
	return sum, runErr
}

// produce walks users and their routes. Skipped routes go straight to
// results; valid ones are queued for the workers.
func (s *Scanner) produce(ctx context.Context, log *slog.Logger, users []*models.User, jobs chan<- routeJob, results chan<- RouteOutcome) userTally {
	var t userTally
	for _, u := range users {
		if ctx.Err() != nil {
			return t
		}
		if u == nil || u.ID == "" {
			log.Warn("skipping user record without id")
			t.skipped++
			continue
		}
		ulog := log.With("user_id", u.ID)
		if u.FCMToken == "" {
			ulog.Info("skipping user without fcm token")
			t.skipped++
			continue
		}

		recs, err := s.store.ListFavoriteRoutes(ctx, u.ID)
		if err != nil {
			ulog.Error("list favorite routes failed, skipping user", "error", err.Error())
			t.failed++
			continue
		}
		t.processed++
		ulog.Info("checking favorite routes", "routes", len(recs), "token", push.TokenPreview(u.FCMToken))

		for _, rec := range recs {
			if rec == nil {
				ulog.Warn("skipping empty route record")
				results <- RouteOutcome{
					Kind:   OutcomeSkipped,
					Reason: "empty_record",
					UserID: u.ID,
				}
				continue
			}
			route, err := models.ParseFavoriteRoute(*rec)
			if err != nil {
				ulog.Warn("skipping route", "route_id", rec.ID, "error", err.Error())
				results <- RouteOutcome{
					Kind:    OutcomeSkipped,
					Reason:  "invalid_coordinates",
					Err:     err,
					UserID:  u.ID,
					RouteID: rec.ID,
				}
				continue
			}

			select {
			case jobs <- routeJob{token: u.FCMToken, route: route}:
			case <-ctx.Done():
				return t
			}
		}
	}
	return t
}

func (s *Scanner) processRoute(ctx context.Context, log *slog.Logger, job routeJob) RouteOutcome {
	r := job.route
	out := RouteOutcome{UserID: r.UserID, RouteID: r.ID, RouteName: r.Name}
	rlog := log.With("user_id", r.UserID, "route_id", r.ID, "route_name", r.Name)

	s.waitForQuota(ctx, rlog)
	if ctx.Err() != nil {
		out.Kind, out.Reason, out.Err = OutcomeSkipped, "canceled", ctx.Err()
		return out
	}

	// Once started, the lookup and the send run to completion under their
	// own timeouts even if the run is canceled.
	callCtx := context.WithoutCancel(ctx)

	start := time.Now()
	sample, err := s.directions.FetchTraffic(callCtx, r.Origin, r.Destination)
	if s.metrics != nil {
		s.metrics.ObserveDirectionsLatency(time.Since(start))
	}
	if err != nil {
		kind := directions.KindOf(err)
		rlog.Error("traffic lookup failed", "kind", string(kind), "error", err.Error())
		out.Kind, out.Reason, out.Err = OutcomeFailed, string(kind), err
		return out
	}

	out.Decision = delay.Evaluate(sample, s.thresholdPercentage)
	m := out.Decision.Metrics
	rlog.Info("route traffic checked",
		"typical_seconds", sample.TypicalSeconds,
		"live_seconds", sample.LiveSeconds,
		"delay_minutes", m.DelayMinutes,
		"delay_percentage", m.DelayPercentage,
	)
	if !out.Decision.Alert {
		out.Kind = OutcomeOK
		return out
	}
	out.Kind = OutcomeAlerted

	n := delay.BuildNotification(r, sample, out.Decision)
	sendCtx, cancel := context.WithTimeout(callCtx, s.sendTimeout)
	err = s.sender.Send(sendCtx, job.token, n)
	cancel()
	if err != nil {
		out.NotifyErr = err
		rlog.Error("traffic alert not delivered", "error", err.Error())
		return out
	}
	rlog.Info("traffic alert sent", "delay_percentage", m.DelayPercentage)
	return out
}

// waitForQuota holds the route until the shared per-minute quota resets,
// at most quotaBackoff. A limiter error lets the route through.
func (s *Scanner) waitForQuota(ctx context.Context, log *slog.Logger) {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return
	}
	q, err := s.rl.Reserve(ctx, quotaScope, s.rateLimitPerMinute, s.now())
	if err != nil {
		log.Warn("rate limiter unavailable, proceeding", "error", err.Error())
		return
	}
	if q.Allowed {
		return
	}
	wait := q.ResetIn
	if wait <= 0 || wait > s.quotaBackoff {
		wait = s.quotaBackoff
	}
	log.Warn("directions rate limit exceeded", "count", q.Used, "wait", wait.String())
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Scanner) finish(sum *Summary, started time.Time, result string, err error) {
	sum.Duration = s.now().Sub(started)
	s.totalRuns.Add(1)
	s.totalRoutes.Add(int64(sum.RoutesChecked + sum.RoutesSkipped + sum.RoutesFailed))
	s.totalAlerts.Add(int64(sum.Alerts))
	if err != nil {
		s.setLastError(err)
	}
	s.lastMu.Lock()
	cp := *sum
	s.lastSummary = &cp
	s.lastMu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordRun(result)
	}
}
