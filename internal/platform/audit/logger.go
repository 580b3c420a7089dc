package audit

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

type requestKey struct{}

// WithRequest stashes the request so Log can record caller address and agent.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// Logger records operator actions on the admin surface (onboarding, secret
// rotation, deactivation) as structured log events.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) Log(ctx context.Context, operatorID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	ip := "unknown"
	ua := "unknown"
	if req, ok := ctx.Value(requestKey{}).(*http.Request); ok {
		ip = req.RemoteAddr
		ua = req.UserAgent()
	}

	log.Info().
		Str("audit", "admin").
		Str("operator_id", operatorID).
		Str("action", action).
		Str("resource_type", resourceType).
		Str("resource_id", resourceID).
		Str("ip", ip).
		Str("user_agent", ua).
		Fields(metadata).
		Msg("admin action")
}
