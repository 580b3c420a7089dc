package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apiContext "payhub/internal/api/context"
	"payhub/internal/engine/sessions"
	"payhub/internal/engine/settlement"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
)

// LogRecorder records the raw inbound callback for the audit trail.
type LogRecorder interface {
	Insert(lg *models.WebhookLog) error
}

// SettlementHandler receives provider settlement callbacks. Providers may
// redeliver; the correlator absorbs duplicates.
type SettlementHandler struct {
	sessions   *sessions.Service
	correlator *settlement.Correlator
	logs       LogRecorder
	validate   *validator.Validate
}

func NewSettlementHandler(svc *sessions.Service, correlator *settlement.Correlator, logs LogRecorder) *SettlementHandler {
	return &SettlementHandler{
		sessions:   svc,
		correlator: correlator,
		logs:       logs,
		validate:   validator.New(),
	}
}

type settlementCallbackRequest struct {
	PayupID       string                 `json:"payup_id" validate:"required"`
	ExternalID    string                 `json:"external_id"`
	Amount        int64                  `json:"amount" validate:"required,gt=0"`
	Currency      string                 `json:"currency" validate:"required,len=3"`
	Status        string                 `json:"status" validate:"required"`
	Fees          *int64                 `json:"fees" validate:"omitempty,gte=0"`
	FailureReason string                 `json:"failure_reason"`
	ProviderData  map[string]interface{} `json:"provider_data"`
}

func (h *SettlementHandler) Handle(w http.ResponseWriter, r *http.Request) {
	app := r.Context().Value(apiContext.App).(*models.App)

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Failed to read request body", nil)
		return
	}

	h.recordInbound(app.ID, raw)

	var req settlementCallbackRequest
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", err.Error())
		return
	}

	payup, err := h.sessions.Get(req.PayupID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	if payup.AppID != app.ID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "payup "+req.PayupID+" not found", nil)
		return
	}

	txn, err := h.correlator.Settle(settlement.Input{
		PayupID:       req.PayupID,
		ExternalID:    req.ExternalID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        req.Status,
		Fees:          req.Fees,
		FailureReason: req.FailureReason,
		ProviderData:  req.ProviderData,
	})
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txn)
}

// recordInbound is best effort; a failed audit write must not reject the
// settlement itself.
func (h *SettlementHandler) recordInbound(appID string, payload []byte) {
	if h.logs == nil {
		return
	}
	now := time.Now().Unix()
	h.logs.Insert(&models.WebhookLog{
		AppID:       appID,
		EventID:     "evt_" + uuid.New().String(),
		EventType:   "provider.settlement",
		Direction:   models.DirectionInbound,
		Status:      models.DeliveryReceived,
		Payload:     payload,
		ProcessedAt: &now,
	})
}
