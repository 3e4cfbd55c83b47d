package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tessera/cmd/consumers/jobs"
	"tessera/internal/config"
	"tessera/internal/consumers"
	"tessera/internal/logger"
	"tessera/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting consumers service...")

	// Отдельный client id, иначе кластер примет нас за API
	cfg.NATS.ClientID = "tessera-consumers"

	var (
		m          *metrics.Metrics
		metricsSrv *http.Server
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		metricsSrv = &http.Server{Addr: ":" + cfg.Port, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	consumerService, err := consumers.NewConsumerService(cfg, m)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeper *jobs.HoldSweeperJob
	if seats := consumerService.Seats(); seats != nil {
		sweeper = jobs.NewHoldSweeperJob(seats, consumerService.Publisher(), m, cfg.Sweeper.Interval)
		sweeper.Start(ctx)
	} else {
		log.Warn("Hold sweeper disabled: inventory backend is not postgres", "backend", cfg.Inventory.Backend)
	}

	log.Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down consumers service...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping metrics server", "error", err)
		}
	}

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Consumers service stopped")
}
