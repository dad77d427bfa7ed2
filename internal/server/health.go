package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// healthHandler is the liveness probe: the process is up.
func (cfg Config) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": cfg.Build.Version,
			"commit":  cfg.Build.Commit,
		})
	})
}

// readyHandler is the readiness probe: the catalog answers a ping.
func (cfg Config) readyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Catalog != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Catalog.Ping(ctx); err != nil {
				cfg.Logger.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":  "not_ready",
					"message": "database unavailable",
				})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
