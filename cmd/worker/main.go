package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"payhub/internal/engine/sessions"
	"payhub/internal/engine/webhooks"
	"payhub/internal/platform/config"
	"payhub/internal/platform/database"
	"payhub/internal/platform/repositories"
	"payhub/internal/pkg/logger"
	"payhub/internal/workers"
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

	appRepo := repositories.NewAppRepository(db)
	payupRepo := repositories.NewPayupRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	logRepo := repositories.NewWebhookLogRepository(db)

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

	reaper := sessions.NewReaper(payupRepo, appRepo, dispatcher, cfg.Sessions.SweepBatch)

	runner := &workers.Runner{
		Dispatcher:    dispatcher,
		Reaper:        reaper,
		PollInterval:  cfg.Webhooks.PollInterval,
		SweepInterval: cfg.Sessions.SweepInterval,
	}

	stop := make(chan struct{})
	go runner.RunWebhookPoller(stop)
	go runner.RunSessionSweeper(stop)

	log.Println("Payhub workers started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down, draining in-flight deliveries...")
	close(stop)
	dispatcher.Drain()
	log.Println("Workers stopped")
}
