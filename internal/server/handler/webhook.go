package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/solwatch/internal/domain"
	"github.com/alanyoungcy/solwatch/internal/pipeline"
)

// DefaultMaxBodyBytes caps webhook request bodies.
const DefaultMaxBodyBytes int64 = 5 << 20

// Processor runs one payload through the alert pipeline.
type Processor interface {
	Handle(ctx context.Context, raw []byte) pipeline.Result
}

// WebhookHandler accepts webhook deliveries.
type WebhookHandler struct {
	pipeline Processor
	maxBody  int64
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. maxBody <= 0 uses
// DefaultMaxBodyBytes.
func NewWebhookHandler(p Processor, maxBody int64, logger *slog.Logger) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &WebhookHandler{
		pipeline: p,
		maxBody:  maxBody,
		logger:   logger.With(slog.String("handler", "webhook")),
	}
}

type webhookResponse struct {
	BatchID  string               `json:"batch_id"`
	Shape    string               `json:"shape"`
	Detected int                  `json:"detected"`
	Alerts   int                  `json:"alerts"`
	Reports  []domain.ErrorReport `json:"reports"`
}

// Receive handles a delivery. Empty or unrecognised payloads get 400;
// everything else gets 200 with a summary, even when some transfers failed.
// POST /webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No data received")
		return
	}

	res := h.pipeline.Handle(r.Context(), body)
	reports := res.Reports
	if reports == nil {
		reports = []domain.ErrorReport{}
	}

	if err := res.Err(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrMalformedPayload) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{
			"error":    err.Error(),
			"batch_id": res.BatchID,
			"reports":  reports,
		})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		BatchID:  res.BatchID,
		Shape:    res.Shape.String(),
		Detected: res.Detected,
		Alerts:   len(res.Alerts),
		Reports:  reports,
	})
}
