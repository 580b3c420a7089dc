package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "payhub/internal/api/context"
	"payhub/internal/api/handlers"
	"payhub/internal/api/middleware"
)

type Dependencies struct {
	SessionHandler    *handlers.SessionHandler
	SettlementHandler *handlers.SettlementHandler
	TemplateHandler   *handlers.TemplateHandler
	WebhookLogHandler *handlers.WebhookLogHandler
	AppHandler        *handlers.AppHandler
	HealthHandler     *handlers.HealthHandler
	APIKeyMiddleware  *middleware.APIKeyMiddleware
	OperatorAuth      *middleware.OperatorAuthMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))

	apiKey := deps.APIKeyMiddleware
	operator := deps.OperatorAuth

	// Payment sessions
	router.POST("/api/v1/payups",
		chain(deps.SessionHandler.Create, apiKey.Handle))
	router.GET("/api/v1/payups/:payup_id",
		chain(deps.SessionHandler.Get, apiKey.Handle))
	router.POST("/api/v1/payups/:payup_id/cancel",
		chain(deps.SessionHandler.Cancel, apiKey.Handle))

	// Provider settlement callback
	router.POST("/api/v1/callbacks/settlement",
		chain(deps.SettlementHandler.Handle, apiKey.Handle))

	// Webhook configuration and delivery audit trail
	router.POST("/api/v1/webhook-templates",
		chain(deps.TemplateHandler.Create, apiKey.Handle))
	router.GET("/api/v1/webhook-templates",
		chain(deps.TemplateHandler.List, apiKey.Handle))
	router.GET("/api/v1/webhook-logs",
		chain(deps.WebhookLogHandler.List, apiKey.Handle))

	// Operator surface
	router.POST("/api/v1/admin/apps",
		chain(deps.AppHandler.Create, operator.Handle))
	router.POST("/api/v1/admin/apps/:app_id/rotate-secret",
		chain(deps.AppHandler.RotateSecret, operator.Handle))
	router.POST("/api/v1/admin/apps/:app_id/rotate-key",
		chain(deps.AppHandler.RotateKey, operator.Handle))
	router.PATCH("/api/v1/admin/apps/:app_id",
		chain(deps.AppHandler.Update, operator.Handle))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
