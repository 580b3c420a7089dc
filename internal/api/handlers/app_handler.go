package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"

	apiContext "payhub/internal/api/context"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/audit"
	"payhub/internal/platform/auth"
	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

// AppHandler is the operator surface: tenant onboarding and credential
// rotation. Raw credentials appear in the response exactly once.
type AppHandler struct {
	apps     *repositories.AppRepository
	audit    *audit.Logger
	validate *validator.Validate
}

func NewAppHandler(apps *repositories.AppRepository, auditLog *audit.Logger) *AppHandler {
	return &AppHandler{
		apps:     apps,
		audit:    auditLog,
		validate: validator.New(),
	}
}

type createAppRequest struct {
	Name           string                 `json:"name" validate:"required,max=255"`
	Provider       string                 `json:"provider" validate:"required,max=64"`
	WebhookURL     string                 `json:"webhook_url" validate:"omitempty,url"`
	NotifyOnExpiry bool                   `json:"notify_on_expiry"`
	Metadata       map[string]interface{} `json:"metadata"`
}

type appCredentialsResponse struct {
	App           *models.App `json:"app"`
	APIKey        string      `json:"api_key,omitempty"`
	WebhookSecret string      `json:"webhook_secret,omitempty"`
}

func (h *AppHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", err.Error())
		return
	}

	rawKey, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate credentials", nil)
		return
	}
	secret, err := auth.GenerateWebhookSecret()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate credentials", nil)
		return
	}

	app := &models.App{
		Name:           req.Name,
		Provider:       req.Provider,
		APIKeyPrefix:   prefix,
		APIKeyHash:     hash,
		WebhookSecret:  secret,
		WebhookURL:     req.WebhookURL,
		Active:         true,
		NotifyOnExpiry: req.NotifyOnExpiry,
		Metadata:       req.Metadata,
	}

	if err := h.apps.Create(app); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create app", nil)
		return
	}

	h.auditLog(r, "app.create", app.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appCredentialsResponse{App: app, APIKey: rawKey, WebhookSecret: secret})
}

// RotateSecret replaces the webhook signing secret; the old value stops
// signing the moment the update lands.
func (h *AppHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	app, ok := h.loadApp(w, r)
	if !ok {
		return
	}

	secret, err := auth.GenerateWebhookSecret()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
		return
	}
	if err := h.apps.RotateWebhookSecret(app.ID, secret); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to rotate secret", nil)
		return
	}

	h.auditLog(r, "app.rotate_secret", app.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appCredentialsResponse{App: app, WebhookSecret: secret})
}

func (h *AppHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	app, ok := h.loadApp(w, r)
	if !ok {
		return
	}

	rawKey, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate key", nil)
		return
	}
	if err := h.apps.RotateAPIKey(app.ID, prefix, hash); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to rotate key", nil)
		return
	}

	h.auditLog(r, "app.rotate_key", app.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appCredentialsResponse{App: app, APIKey: rawKey})
}

type updateAppRequest struct {
	Active         *bool `json:"active"`
	NotifyOnExpiry *bool `json:"notify_on_expiry"`
}

func (h *AppHandler) Update(w http.ResponseWriter, r *http.Request) {
	app, ok := h.loadApp(w, r)
	if !ok {
		return
	}

	var req updateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Active != nil {
		if err := h.apps.SetActive(app.ID, *req.Active); err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update app", nil)
			return
		}
		app.Active = *req.Active
		h.auditLog(r, "app.set_active", app.ID, map[string]interface{}{"active": *req.Active})
	}
	if req.NotifyOnExpiry != nil {
		if err := h.apps.SetNotifyOnExpiry(app.ID, *req.NotifyOnExpiry); err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update app", nil)
			return
		}
		app.NotifyOnExpiry = *req.NotifyOnExpiry
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app)
}

func (h *AppHandler) loadApp(w http.ResponseWriter, r *http.Request) (*models.App, bool) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("app_id")

	app, err := h.apps.GetByID(id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load app", nil)
		return nil, false
	}
	if app == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "app "+id+" not found", nil)
		return nil, false
	}
	return app, true
}

func (h *AppHandler) auditLog(r *http.Request, action, appID string, metadata map[string]interface{}) {
	if h.audit == nil {
		return
	}
	operatorID := "unknown"
	if claims, ok := r.Context().Value(apiContext.Operator).(*auth.OperatorClaims); ok {
		operatorID = claims.OperatorID
	}
	h.audit.Log(audit.WithRequest(r.Context(), r), operatorID, action, "app", appID, metadata)
}
