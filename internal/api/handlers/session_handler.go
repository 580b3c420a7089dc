package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"

	apiContext "payhub/internal/api/context"
	"payhub/internal/engine/sessions"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
)

type SessionHandler struct {
	sessions *sessions.Service
	validate *validator.Validate
}

func NewSessionHandler(svc *sessions.Service) *SessionHandler {
	return &SessionHandler{
		sessions: svc,
		validate: validator.New(),
	}
}

type createPayupRequest struct {
	Amount        int64                  `json:"amount" validate:"required,gt=0"`
	Currency      string                 `json:"currency" validate:"required,len=3"`
	TTLSeconds    int64                  `json:"ttl_seconds" validate:"omitempty,gt=0"`
	CustomerName  string                 `json:"customer_name" validate:"omitempty,max=255"`
	CustomerEmail string                 `json:"customer_email" validate:"omitempty,email"`
	ReturnURL     string                 `json:"return_url" validate:"omitempty,url"`
	CancelURL     string                 `json:"cancel_url" validate:"omitempty,url"`
	Metadata      map[string]interface{} `json:"metadata"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	app := r.Context().Value(apiContext.App).(*models.App)

	var req createPayupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", err.Error())
		return
	}

	payup, err := h.sessions.Create(app, sessions.CreateInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ReturnURL:     req.ReturnURL,
		CancelURL:     req.CancelURL,
		Metadata:      req.Metadata,
	})
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payup)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	payup, ok := h.ownedPayup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payup)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	payup, ok := h.ownedPayup(w, r)
	if !ok {
		return
	}

	cancelled, err := h.sessions.Cancel(payup.ID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cancelled)
}

// ownedPayup loads the session and enforces tenant isolation: a foreign
// session is indistinguishable from a missing one.
func (h *SessionHandler) ownedPayup(w http.ResponseWriter, r *http.Request) (*models.Payup, bool) {
	app := r.Context().Value(apiContext.App).(*models.App)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("payup_id")

	payup, err := h.sessions.Get(id)
	if err != nil {
		errors.WriteDomainError(w, err)
		return nil, false
	}
	if payup.AppID != app.ID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "payup "+id+" not found", nil)
		return nil, false
	}
	return payup, true
}
