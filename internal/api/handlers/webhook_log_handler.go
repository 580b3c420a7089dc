package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apiContext "payhub/internal/api/context"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

// WebhookLogHandler is the tenant-facing view on delivery attempts. After
// retries are exhausted this is where a tenant sees what happened.
type WebhookLogHandler struct {
	logs *repositories.WebhookLogRepository
}

func NewWebhookLogHandler(logs *repositories.WebhookLogRepository) *WebhookLogHandler {
	return &WebhookLogHandler{logs: logs}
}

func (h *WebhookLogHandler) List(w http.ResponseWriter, r *http.Request) {
	app := r.Context().Value(apiContext.App).(*models.App)

	var logs []*models.WebhookLog
	var err error

	if eventID := r.URL.Query().Get("event_id"); eventID != "" {
		logs, err = h.logs.ListByEvent(app.ID, eventID)
	} else {
		limit := queryInt(r, "limit", 50)
		if limit > 200 {
			limit = 200
		}
		offset := queryInt(r, "offset", 0)
		logs, err = h.logs.ListByApp(app.ID, limit, offset)
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list webhook logs", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return fallback
	}
	return val
}
