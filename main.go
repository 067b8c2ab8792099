package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/PranavReddyGaddam/Signal/api"
	"github.com/PranavReddyGaddam/Signal/config"
	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/hub"
	"github.com/PranavReddyGaddam/Signal/llm"
	"github.com/PranavReddyGaddam/Signal/policy"
	"github.com/PranavReddyGaddam/Signal/relay"
	"github.com/PranavReddyGaddam/Signal/scheduler"
	"github.com/PranavReddyGaddam/Signal/service"
	"github.com/PranavReddyGaddam/Signal/stage"
	"github.com/PranavReddyGaddam/Signal/store"
	"github.com/PranavReddyGaddam/Signal/ws"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting Signal orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Internal Port: %d", cfg.InternalPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	eventHub := hub.NewHub(cfg.SendBufferSize)

	// Workers publish through the relay when one is configured, so a
	// separate API instance can hold the subscribers.
	var broadcaster service.Broadcaster = eventHub
	if cfg.RelayURL != "" {
		log.Printf("Relaying events to %s", cfg.RelayURL)
		broadcaster = relay.NewClient(cfg.RelayURL)
	}

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	svc := service.New(db, broadcaster, policyEngine, cfg.AutoConfirm)

	intentStage := stage.MockIntent()
	if cfg.UseLLM {
		log.Printf("Using LLM-backed intent extraction (%s)", cfg.LLMModel)
		llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
		intentStage = stage.LLMIntent(llmClient, cfg.LLMModel)
	}

	sched := scheduler.New(map[domain.Stage]stage.Func{
		domain.StageIntent:  intentStage,
		domain.StagePattern: stage.MockPatterns(),
		domain.StageLead:    stage.MockLeads(),
	}, svc, scheduler.Options{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
	})
	svc.AttachScheduler(sched)
	sched.Start()
	defer sched.Stop()

	h := api.NewHandler(svc)
	wsServer := ws.NewServer(cfg, eventHub)
	internalH := api.NewInternalHandler(eventHub)

	// External server: session commands plus the WebSocket endpoint.
	externalServer := echo.New()
	externalServer.HideBanner = true
	externalServer.Use(middleware.Logger())
	externalServer.Use(middleware.Recover())
	externalServer.Use(middleware.CORS())
	h.RegisterRoutes(externalServer)
	wsServer.RegisterRoutes(externalServer)

	// Internal server: event ingest from relaying workers.
	internalServer := echo.New()
	internalServer.HideBanner = true
	internalServer.Use(middleware.Logger())
	internalServer.Use(middleware.Recover())
	internalH.RegisterRoutes(internalServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start external server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start internal server: %v", err)
		}
	}()

	log.Printf("External API started on port %d", cfg.HTTPPort)
	log.Printf("Internal API started on port %d", cfg.InternalPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown external server gracefully: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown internal server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
