// cmd/match-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"match-engine/internal/api"
	"match-engine/internal/app"
	"match-engine/internal/common/config"
	"match-engine/internal/common/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting match engine...", zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.Connect(ctx, cfg, log, 15)
	if err != nil {
		zapLog.Fatal("backend connection failed", zap.Error(err))
	}
	defer res.Close()

	a, err := app.New(ctx, cfg, res, log)
	if err != nil {
		zapLog.Fatal("engine assembly failed", zap.Error(err))
	}
	defer a.Close()

	if config.IsWorkerEnabled(cfg, config.RecomputeWorker) {
		if err := a.Scheduler.Start(ctx); err != nil {
			zapLog.Fatal("scheduler start failed", zap.Error(err))
		}
		zapLog.Info("Recompute scheduler started")
	} else {
		zapLog.Warn("Recompute processor disabled, serving reads and triggers only")
	}

	// --- Health / Metrics / pprof ---
	metricsSrv := &http.Server{Addr: cfg.API.MetricsAddress, Handler: metricsMux(res)}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.API.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- API ---
	srv := api.NewServer(a.Engine, log)
	go func() {
		zapLog.Info("API listening", zap.String("address", cfg.API.Address))
		if err := srv.Listen(cfg.API.Address); err != nil {
			zapLog.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API shutdown failed", zap.Error(err))
	}
	a.Scheduler.Stop()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Match engine stopped gracefully")
}

func metricsMux(res *app.Resources) *http.ServeMux {
	mux := http.DefaultServeMux // carries the pprof handlers
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := res.Postgres.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
