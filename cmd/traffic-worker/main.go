package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/BearBump/RouteWatch/config"
	"github.com/BearBump/RouteWatch/internal/logger"
	"github.com/BearBump/RouteWatch/internal/metrics"
	"github.com/BearBump/RouteWatch/internal/services/scanner"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const defaultSwaggerPath = "api/traffic-worker.swagger.json"

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string
	root := &cobra.Command{
		Use:           "traffic-worker",
		Short:         "Favorite routes traffic scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("configPath"), "path to the YAML config (env configPath)")

	root.AddCommand(runCmd(&cfgPath), scanOnceCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		slog.Error("traffic-worker failed", "error", err.Error())
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, errors.New("configPath env var or --config flag is required")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Setup(os.Stdout, cfg.Log.Level)
	return cfg, nil
}

func runCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scan every hour and serve the operator HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			m := metrics.NewCollector(reg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			swaggerPath := os.Getenv("workerSwaggerPath")
			if swaggerPath == "" {
				swaggerPath = defaultSwaggerPath
			}

			var current atomic.Pointer[scanner.Scanner]
			go func() {
				err := runWorkerHTTPServer(ctx, workerHTTPOpts{
					httpAddr:    cfg.Scan.HTTPAddr,
					swaggerPath: swaggerPath,
					scanner:     current.Load,
					cfg:         cfg,
					gatherer:    reg,
				})
				if err != nil && ctx.Err() == nil {
					slog.Error("worker http server stopped", "error", err.Error())
				}
			}()

			err = RunTrafficWorker(ctx, cfg, defaultWorkerFactories(), m, current.Store)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func scanOnceCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-once",
		Short: "Run a single scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sum, err := ScanOnce(ctx, cfg, defaultWorkerFactories(), nil)
			if err != nil {
				return err
			}
			cmd.Printf("run %s: %d routes checked, %d alerts, %d sent, %d failed\n",
				sum.RunID, sum.RoutesChecked, sum.Alerts, sum.NotificationsSent, sum.NotificationsFailed)
			return nil
		},
	}
}
