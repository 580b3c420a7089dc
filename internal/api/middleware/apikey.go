package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "payhub/internal/api/context"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/auth"
	"payhub/internal/platform/models"
)

// AppSource is the tenant lookup the middleware needs.
type AppSource interface {
	GetByKeyPrefix(prefix string) (*models.App, error)
}

// APIKeyMiddleware authenticates tenant requests by bearer API key: lookup
// by stored prefix, verify against the bcrypt hash, reject inactive apps.
type APIKeyMiddleware struct {
	apps AppSource
}

func NewAPIKeyMiddleware(apps AppSource) *APIKeyMiddleware {
	return &APIKeyMiddleware{apps: apps}
}

func (m *APIKeyMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}
		rawKey := parts[1]

		prefix := auth.KeyPrefix(rawKey)
		if prefix == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}

		app, err := m.apps.GetByKeyPrefix(prefix)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load app", nil)
			return
		}
		if app == nil || !auth.VerifyAPIKey(app.APIKeyHash, rawKey) {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}
		if !app.Active {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "App is deactivated", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.App, app)
		next(w, r.WithContext(ctx))
	}
}
