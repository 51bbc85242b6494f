package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/miradorstack/attrition-predictor/internal/api"
	"github.com/miradorstack/attrition-predictor/internal/config"
	"github.com/miradorstack/attrition-predictor/internal/inference"
	"github.com/miradorstack/attrition-predictor/internal/metrics"
	"github.com/miradorstack/attrition-predictor/internal/services"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	if err := run(configPath); err != nil {
		os.Exit(1)
	}
}

// run boots the service and blocks until a shutdown signal arrives. Failures are
// logged before they are returned so every deferred cleanup runs before exit.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting attrition-predictor",
		slog.String("address", cfg.Server.Address),
		slog.String("artifacts_backend", cfg.Artifacts.Backend))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	store, err := cfg.Artifacts.OpenStore(logger)
	if err != nil {
		logger.Error("failed to open artifact store", slog.Any("error", err))
		return err
	}
	defer store.Close()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	predictor, err := inference.Load(loadCtx, logger, store)
	cancelLoad()
	if err != nil {
		logger.Error("failed to load artifacts",
			slog.String("kind", string(utils.KindOf(err))),
			slog.Any("error", err))
		return err
	}
	manifest := store.Manifest()
	for _, info := range manifest {
		metrics.SetArtifact(info.Kind, info.Fingerprint)
	}

	predictionService := services.NewPredictionService(logger, predictor)

	gin.SetMode(cfg.Server.Mode)
	httpHandler := api.NewHTTPHandler(logger, predictionService, api.HTTPOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		Artifacts:      manifest,
	})

	server, err := api.NewServer(cfg.Server, logger, predictionService, httpHandler)
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("serving gRPC and HTTP", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("server exited", slog.Any("error", serveErr))
		}
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("attrition-predictor stopped", slog.Duration("p95_latency", predictionService.LatencyP95()))
	return nil
}
