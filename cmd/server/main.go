package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "cardpay/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cardpay/internal/auth"
	"cardpay/internal/cache"
	"cardpay/internal/config"
	"cardpay/internal/db"
	"cardpay/internal/handler"
	"cardpay/internal/logging"
	"cardpay/internal/metrics"
	"cardpay/internal/repository"
	"cardpay/internal/router"
	"cardpay/internal/service"
)

// @title Credit Card Payment Ledger API
// @version 1.0
// @description Users, cards, transactions and admin reporting for the card payment demo.
// @host localhost:8000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "ledger", cfg.AppEnv)
	slog.SetDefault(logger)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if cfg.ResetDB {
		logger.Warn("RESET_DB set, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			logger.Error("reset failed", "error", err)
			os.Exit(1)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("auto-migrate failed", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() {
		_ = cacheClient.Close()
	}()
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		// refresh tokens live in redis; login fails until it is reachable
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	cancel()

	jwtService, err := auth.FromConfig(cfg)
	if err != nil {
		logger.Error("jwt init failed", "error", err)
		os.Exit(1)
	}
	activeKID, kids := jwtService.KeyIDs()
	logger.Info("token key ring loaded", "active_kid", activeKID, "kids", kids)
	tokenStore := auth.NewTokenStore(cacheClient.Redis())

	repos := repository.New(gormDB)

	authService := service.NewAuthService(repos.Users, jwtService, tokenStore, cacheClient, logger)
	cardService := service.NewCardService(repos.Cards, logger)
	txnService := service.NewTransactionService(repos, logger)
	adminService := service.NewAdminService(repos, cacheClient, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterLedger(registry)

	e := router.New(cfg, logger, registry)
	router.RegisterLedger(e, cfg, jwtService, router.LedgerHandlers{
		Auth:         handler.NewAuthHandler(authService),
		Cards:        handler.NewCardHandler(cardService),
		Transactions: handler.NewTransactionHandler(txnService),
		Admin:        handler.NewAdminHandler(adminService),
	})

	logger.Info("swagger documentation available", "url", swaggerURL(cfg))
	serve(e, ":"+cfg.ServerPort, logger)
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}

func serve(e *echo.Echo, addr string, logger *slog.Logger) {
	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("ledger starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

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
