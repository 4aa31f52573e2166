// Package main provides the entry point for the dedup engine daemon.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/catalogmerge/dedupengine/internal/config"
	"github.com/catalogmerge/dedupengine/internal/di"
	"github.com/catalogmerge/dedupengine/internal/di/providers"
	"github.com/catalogmerge/dedupengine/internal/logger"
)

func main() {
	// Create DI container.
	injector := di.NewContainer()

	// Bootstrap all services.
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap dedup engine: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	cfg := do.MustInvoke[*config.Config](injector)

	stopMetrics := startMetricsServer(cfg, injector, log)

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down dedup engine gracefully...")

	if stopMetrics != nil {
		stopMetrics()
	}

	// The DI container shuts down providers implementing do.Shutdownable
	// (EngineHandle stops its worker pool, StoreHandle closes the store)
	// in reverse dependency order.
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}

	log.Info("dedup engine stopped")
}

// startMetricsServer starts the health/readiness HTTP listener when
// cfg.Metrics.Addr is set, returning a func to stop it. Returns nil if the
// listener is disabled.
func startMetricsServer(cfg *config.Config, injector do.Injector, log *logger.Logger) func() {
	if cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listener error", "error", err)
		}
	}()

	log.Info("metrics listener started", "addr", cfg.Metrics.Addr)

	return func() {
		_ = srv.Close()
	}
}
