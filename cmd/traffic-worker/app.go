package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/RouteWatch/config"
	"github.com/BearBump/RouteWatch/internal/broker/kafka"
	"github.com/BearBump/RouteWatch/internal/cache/rediscache"
	"github.com/BearBump/RouteWatch/internal/integrations/directions"
	directionsfake "github.com/BearBump/RouteWatch/internal/integrations/directions/fake"
	"github.com/BearBump/RouteWatch/internal/integrations/directions/googlehttp"
	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/integrations/push/fcm"
	pushfake "github.com/BearBump/RouteWatch/internal/integrations/push/fake"
	"github.com/BearBump/RouteWatch/internal/integrations/push/kafkaqueue"
	"github.com/BearBump/RouteWatch/internal/services/scanner"
	"github.com/BearBump/RouteWatch/internal/storage/pgroutes"
)

type workerFactories struct {
	newStorage          func(cfg *config.Config) (store scanner.Store, closeFn func(), err error)
	newRateLimiter      func(cfg *config.Config) (rl scanner.RateLimiter, closeFn func())
	newDirectionsClient func(cfg *config.Config) directions.Client
	newSender           func(ctx context.Context, cfg *config.Config) (sender push.Sender, closeFn func(), err error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (scanner.Store, func(), error) {
			dsn := cfg.Database.DSN()
			if dsn == "" {
				return nil, nil, fmt.Errorf("database.host is required")
			}
			st, err := openPostgresWithRetry(dsn, 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newRateLimiter: func(cfg *config.Config) (scanner.RateLimiter, func()) {
			addr := cfg.Redis.Addr()
			if addr == "" {
				return nil, nil
			}
			rl := rediscache.NewRateLimiter(addr)
			return rl, func() { _ = rl.Close() }
		},
		newDirectionsClient: func(cfg *config.Config) directions.Client {
			if cfg.Directions.Mode == "fake" {
				return directionsfake.New()
			}
			timeout := time.Duration(cfg.Directions.TimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = googlehttp.DefaultTimeout
			}
			return googlehttp.New(cfg.Directions.BaseURL, cfg.Directions.APIKey).
				WithTimeout(timeout).
				WithRateLimit(cfg.Directions.RequestsPerSecond)
		},
		newSender: func(ctx context.Context, cfg *config.Config) (push.Sender, func(), error) {
			switch cfg.Push.Mode {
			case "fcm":
				s, err := fcm.New(ctx, cfg.Push.FirebaseCredentialsFile, cfg.Push.FirebaseProjectID)
				if err != nil {
					return nil, nil, err
				}
				return s, nil, nil
			case "kafka":
				topic := cfg.Kafka.TrafficAlertsTopicName
				if topic == "" {
					topic = kafkaqueue.DefaultTopic
				}
				producer := kafka.NewProducer([]string{cfg.Kafka.Addr()})
				return kafkaqueue.New(producer, topic), func() { _ = producer.Close() }, nil
			default:
				return pushfake.New(), nil, nil
			}
		},
	}
}

func openPostgresWithRetry(dsn string, wait time.Duration) (*pgroutes.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgroutes.New(dsn)
		if err == nil {
			return st, nil
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %w", wait, lastErr)
}

type worker struct {
	scanner *scanner.Scanner
	closeFn func()
}

// buildWorker wires the scanner from cfg. The caller must call closeFn.
func buildWorker(ctx context.Context, cfg *config.Config, f workerFactories, m scanner.Metrics) (*worker, error) {
	concurrency := cfg.Scan.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sendTimeout := time.Duration(cfg.Scan.SendTimeoutSeconds) * time.Second
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	timezone := cfg.Scan.Timezone
	if timezone == "" {
		timezone = scanner.DefaultTimezone
	}
	sched, err := scanner.NewSchedule(timezone, cfg.Scan.ScheduleMinute)
	if err != nil {
		return nil, err
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, closeStore, err := f.newStorage(cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	sender, closeSender, err := f.newSender(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	if closeSender != nil {
		closers = append(closers, closeSender)
	}

	rl, closeRL := f.newRateLimiter(cfg)
	if closeRL != nil {
		closers = append(closers, closeRL)
	}

	sc := scanner.New(store, f.newDirectionsClient(cfg), sender, rl, cfg.Directions.APIKey).
		WithSettings(0, concurrency, sendTimeout, cfg.Scan.RateLimitPerMinute).
		WithThreshold(cfg.Scan.Threshold()).
		WithSchedule(sched, cfg.Scan.RunOnStart).
		WithAPIKeyRequired(cfg.Directions.Mode != "fake")
	if m != nil {
		sc.WithMetrics(m)
	}

	slog.Info("traffic worker configured",
		"timezone", timezone,
		"threshold_percentage", cfg.Scan.Threshold(),
		"concurrency", concurrency,
		"directions_mode", modeOr(cfg.Directions.Mode, "google"),
		"push_mode", modeOr(cfg.Push.Mode, "fake"),
	)
	return &worker{scanner: sc, closeFn: closeAll}, nil
}

// RunTrafficWorker scans on schedule until ctx is done. onReady, when set,
// receives the scanner before the loop starts.
func RunTrafficWorker(ctx context.Context, cfg *config.Config, f workerFactories, m scanner.Metrics, onReady func(*scanner.Scanner)) error {
	w, err := buildWorker(ctx, cfg, f, m)
	if err != nil {
		return err
	}
	defer w.closeFn()

	if onReady != nil {
		onReady(w.scanner)
	}
	return w.scanner.Run(ctx)
}

// ScanOnce runs a single scan and returns its summary.
func ScanOnce(ctx context.Context, cfg *config.Config, f workerFactories, m scanner.Metrics) (scanner.Summary, error) {
	w, err := buildWorker(ctx, cfg, f, m)
	if err != nil {
		return scanner.Summary{}, err
	}
	defer w.closeFn()
	return w.scanner.RunOnce(ctx)
}

func modeOr(mode, def string) string {
	if mode == "" {
		return def
	}
	return mode
}
