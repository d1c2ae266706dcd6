package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/RouteWatch/config"
	"github.com/BearBump/RouteWatch/internal/metrics"
	"github.com/BearBump/RouteWatch/internal/services/scanner"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scanner  func() *scanner.Scanner
	cfg      *config.Config
	gatherer prometheus.Gatherer
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	current := func() *scanner.Scanner {
		if opts.scanner == nil {
			return nil
		}
		return opts.scanner()
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if current() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		sc := current()
		if sc == nil {
			_, _ = w.Write([]byte(`{"error":"scanner not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(sc.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// operational settings only, never the keys themselves
		out := map[string]any{
			"timezone":             opts.cfg.Scan.Timezone,
			"scheduleMinute":       opts.cfg.Scan.ScheduleMinute,
			"thresholdPercentage":  opts.cfg.Scan.Threshold(),
			"concurrency":          opts.cfg.Scan.Concurrency,
			"sendTimeoutSeconds":   opts.cfg.Scan.SendTimeoutSeconds,
			"rateLimitPerMinute":   opts.cfg.Scan.RateLimitPerMinute,
			"directionsMode":       modeOr(opts.cfg.Directions.Mode, "google"),
			"pushMode":             modeOr(opts.cfg.Push.Mode, "fake"),
			"mapsAPIKeyConfigured": scanner.APIKeyConfigured(opts.cfg.Directions.APIKey),
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		sc := current()
		if sc == nil {
			_, _ = w.Write([]byte(`{"error":"scanner not wired"}`))
			return
		}
		sc.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	if opts.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.gatherer))
	}

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return r
}
