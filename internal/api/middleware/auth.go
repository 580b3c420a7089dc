package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "payhub/internal/api/context"
	"payhub/internal/pkg/errors"
	"payhub/internal/platform/auth"
)

// OperatorAuthMiddleware guards the admin surface with operator JWTs.
type OperatorAuthMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewOperatorAuthMiddleware(tokenSvc *auth.TokenService) *OperatorAuthMiddleware {
	return &OperatorAuthMiddleware{tokenSvc: tokenSvc}
}

func (m *OperatorAuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
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

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Operator, claims)
		next(w, r.WithContext(ctx))
	}
}
