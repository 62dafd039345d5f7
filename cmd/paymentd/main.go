package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cardpay/internal/auth"
	"cardpay/internal/config"
	"cardpay/internal/engine"
	"cardpay/internal/handler"
	"cardpay/internal/ledgerclient"
	"cardpay/internal/logging"
	"cardpay/internal/metrics"
	"cardpay/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "payment-engine", cfg.AppEnv)
	slog.SetDefault(logger)

	jwtService, err := auth.FromConfig(cfg)
	if err != nil {
		logger.Error("jwt init failed", "error", err)
		os.Exit(1)
	}
	activeKID, kids := jwtService.KeyIDs()
	logger.Info("token key ring loaded", "active_kid", activeKID, "kids", kids)

	ledger := ledgerclient.New(ledgerclient.Config{
		BaseURL: cfg.LedgerURL,
		Timeout: cfg.LedgerTimeout,
		Retries: cfg.LedgerRetries,
		Logger:  logger,
	})
	decider := engine.NewDecider(engine.DeciderConfig{
		Seed:                 cfg.DecisionSeed,
		DeclineRate:          cfg.DeclineRate,
		HighValueDeclineRate: cfg.HighValueDeclineRate,
		HighValueThreshold:   cfg.HighValueThreshold,
	})
	processor := engine.NewProcessor(ledger, jwtService, decider, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterEngine(registry)

	e := router.New(cfg, logger, registry)
	router.RegisterEngine(e, jwtService, handler.NewPaymentHandler(processor))

	addr := ":" + cfg.EnginePort
	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("payment engine starting", "addr", addr, "ledger", cfg.LedgerURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, logger)
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
