package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/RouteWatch/config"
	trafficapi "github.com/BearBump/RouteWatch/internal/api/traffic_api"
	"github.com/BearBump/RouteWatch/internal/broker/kafka"
	"github.com/BearBump/RouteWatch/internal/cache"
	"github.com/BearBump/RouteWatch/internal/cache/rediscache"
	"github.com/BearBump/RouteWatch/internal/integrations/push/fcm"
	"github.com/BearBump/RouteWatch/internal/integrations/push/kafkaqueue"
	"github.com/BearBump/RouteWatch/internal/logger"
	"github.com/BearBump/RouteWatch/internal/metrics"
	"github.com/BearBump/RouteWatch/internal/services/alerts"
	"github.com/BearBump/RouteWatch/internal/services/favorites"
	"github.com/BearBump/RouteWatch/internal/services/prediction"
	"github.com/BearBump/RouteWatch/internal/services/prediction/speedtable"
	"github.com/BearBump/RouteWatch/internal/storage/pgroutes"
	"github.com/prometheus/client_golang/prometheus"
)

type trafficAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     trafficAPIOpts
	api      *trafficapi.TrafficAPI
	registry *prometheus.Registry
	consumer *kafka.Consumer
	relay    alertHandler
	closers  []func()
}

func mustBootstrapTrafficAPI() *trafficAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		swaggerPath = "api/traffic-api.swagger.json"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger.Setup(os.Stdout, cfg.Log.Level)

	httpAddr := cfg.API.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Kafka.ConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "traffic-api"
	}
	topic := cfg.Kafka.TrafficAlertsTopicName
	if topic == "" {
		topic = kafkaqueue.DefaultTopic
	}
	cacheTTL := time.Duration(cfg.Prediction.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if cfg.API.APIKey == "" {
		slog.Warn("api key is not configured, every /v1 request will be rejected")
	}

	app := &trafficAPIApp{registry: prometheus.NewRegistry()}
	m := metrics.NewCollector(app.registry)

	model := speedtable.Default()
	if cfg.Prediction.ModelFile != "" {
		model, err = speedtable.Load(cfg.Prediction.ModelFile)
		if err != nil {
			panic(err)
		}
	}

	var predictionCache cache.BytesCache
	if addr := cfg.Redis.Addr(); addr != "" {
		rc := rediscache.New(addr)
		app.closers = append(app.closers, func() { _ = rc.Close() })
		predictionCache = rc
	}
	predictor := prediction.New(model, predictionCache, cacheTTL)

	var favs trafficapi.Favorites
	if dsn := cfg.Database.DSN(); dsn != "" {
		st := mustOpenPostgresWithRetry(dsn, 60*time.Second)
		app.closers = append(app.closers, st.Close)
		favs = favorites.New(st)
	}

	app.api = trafficapi.New(predictor, favs, cfg.API.APIKey)

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if cfg.API.RelayAlerts {
		sender, err := fcm.New(app.ctx, cfg.Push.FirebaseCredentialsFile, cfg.Push.FirebaseProjectID)
		if err != nil {
			panic(err)
		}
		app.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: []string{cfg.Kafka.Addr()},
			Topic:   topic,
			GroupID: consumerGroup,
		})
		app.closers = append(app.closers, func() { _ = app.consumer.Close() })
		maxAge := time.Duration(cfg.API.RelayMaxAgeSeconds) * time.Second
		if maxAge <= 0 {
			maxAge = 30 * time.Minute
		}
		app.relay = alerts.NewRelay(sender, 0).WithMaxAge(maxAge).WithMetrics(m).Handle
	}

	app.opts = trafficAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		corsOrigins:   cfg.API.CORSAllowedOrigins,
		topic:         topic,
		consumerGroup: consumerGroup,
	}
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgroutes.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgroutes.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trafficAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trafficAPIApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runTrafficAPI(a.ctx, a.opts, a.api, a.registry, consumer, a.relay)
}
