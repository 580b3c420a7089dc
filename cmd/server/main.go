package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"payhub/internal/api"
	"payhub/internal/api/handlers"
	"payhub/internal/api/middleware"
	"payhub/internal/engine/sessions"
	"payhub/internal/engine/settlement"
	"payhub/internal/engine/webhooks"
	"payhub/internal/pkg/logger"
	"payhub/internal/platform/audit"
	"payhub/internal/platform/auth"
	"payhub/internal/platform/config"
	"payhub/internal/platform/database"
	"payhub/internal/platform/repositories"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	appRepo := repositories.NewAppRepository(db)
	payupRepo := repositories.NewPayupRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	logRepo := repositories.NewWebhookLogRepository(db)
	settlementStore := repositories.NewSettlementStore(db, payupRepo, transactionRepo)

	// Engines
	dispatcher := webhooks.NewDispatcher(webhooks.Config{
		MaxAttempts:       cfg.Webhooks.MaxAttempts,
		BackoffBase:       cfg.Webhooks.BackoffBase,
		BackoffMax:        cfg.Webhooks.BackoffMax,
		JitterFraction:    cfg.Webhooks.JitterFraction,
		DeliveryTimeout:   cfg.Webhooks.DeliveryTimeout,
		ClaimLease:        cfg.Webhooks.ClaimLease,
		WorkerCount:       cfg.Webhooks.WorkerCount,
		PollBatch:         cfg.Webhooks.PollBatch,
		ResponseBodyLimit: cfg.Webhooks.ResponseBodyLimit,
	}, logRepo, appRepo, templateRepo)

	sessionSvc := sessions.NewService(payupRepo, sessions.Config{DefaultTTL: cfg.Sessions.DefaultTTL})
	correlator := settlement.NewCorrelator(payupRepo, transactionRepo, settlementStore, dispatcher)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLog := audit.NewLogger()

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionSvc)
	settlementHandler := handlers.NewSettlementHandler(sessionSvc, correlator, logRepo)
	templateHandler := handlers.NewTemplateHandler(templateRepo)
	webhookLogHandler := handlers.NewWebhookLogHandler(logRepo)
	appHandler := handlers.NewAppHandler(appRepo, auditLog)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(appRepo)
	operatorAuth := middleware.NewOperatorAuthMiddleware(tokenSvc)

	deps := &api.Dependencies{
		SessionHandler:    sessionHandler,
		SettlementHandler: settlementHandler,
		TemplateHandler:   templateHandler,
		WebhookLogHandler: webhookLogHandler,
		AppHandler:        appHandler,
		HealthHandler:     healthHandler,
		APIKeyMiddleware:  apiKeyMiddleware,
		OperatorAuth:      operatorAuth,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
