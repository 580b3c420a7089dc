package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	apiContext "payhub/internal/api/context"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

type TemplateHandler struct {
	templates *repositories.TemplateRepository
	validate  *validator.Validate
}

func NewTemplateHandler(templates *repositories.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		validate:  validator.New(),
	}
}

type createTemplateRequest struct {
	Name      string            `json:"name" validate:"required,max=128"`
	EventType string            `json:"event_type" validate:"required,max=128"`
	IsDefault bool              `json:"is_default"`
	Format    json.RawMessage   `json:"format" validate:"required"`
	Headers   map[string]string `json:"headers"`
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	app := r.Context().Value(apiContext.App).(*models.App)

	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", err.Error())
		return
	}
	if !json.Valid(req.Format) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "format must be a JSON document", nil)
		return
	}

	tpl := &models.WebhookTemplate{
		AppID:     app.ID,
		Name:      req.Name,
		EventType: req.EventType,
		IsDefault: req.IsDefault,
		Format:    string(req.Format),
		Headers:   req.Headers,
	}

	if err := h.templates.Create(tpl); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Template already exists for this name and event type", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	app := r.Context().Value(apiContext.App).(*models.App)

	templates, err := h.templates.ListByApp(app.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list templates", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(templates)
}
