package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fitboard/internal/api"
	"fitboard/internal/cache"
	"fitboard/internal/config"
	"fitboard/internal/dashboard"
	"fitboard/internal/services"
	"fitboard/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	cfg := config.NewConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	slog.Info("Starting API Gateway", "port", cfg.HTTPPort, "origin", cfg.DataOrigin)

	gwCfg, err := services.NewGatewayConfig(cfg)
	if err != nil {
		slog.Error("Invalid data source configuration", "error", err)
		os.Exit(1)
	}
	gateway, err := services.NewGateway(gwCfg)
	if err != nil {
		slog.Error("Failed to create gateway", "error", err)
		os.Exit(1)
	}
	slog.Info("Gateway ready", "origin", gateway.Origin())

	var responseCache api.Cache
	if cfg.RedisEnabled && cfg.RedisAddr != "" {
		redisClient, err := cache.NewClient(cfg.RedisAddr, cache.Limits{
			MaxRequests: cfg.RateLimitMax,
			Window:      cfg.RateLimitWindow,
		})
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		responseCache = redisClient
		slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
	} else {
		slog.Warn("Redis disabled, serving without response cache and rate limiting")
	}

	pool := dashboard.NewPool(gateway, cfg.BoardTTL, cfg.MaxBoards)
	defer pool.Close()

	handler := api.NewHandler(pool, gateway, responseCache, cfg.ResponseCacheTTL)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	handler.Routes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           telemetry.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}
