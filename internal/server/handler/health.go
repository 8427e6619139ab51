package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// IndexText is the liveness banner served at GET /.
const IndexText = "✅ Solana bot is running."

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the liveness and health endpoints.
type HealthHandler struct {
	checks    map[string]Check
	startedAt time.Time
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be nil.
func NewHealthHandler(checks map[string]Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		startedAt: time.Now(),
		timeout:   2 * time.Second,
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// Index answers with a plain-text banner.
// GET /
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(IndexText))
}

// HealthCheck runs every dependency check. Any failure reports "degraded"
// with 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"dependencies":   deps,
	})
}
