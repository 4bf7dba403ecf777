// Package main is the entry point for the printsmart orchestrator.
// It runs the device health monitor and the job lifecycle sweep in one
// process; both are safe to run in multiple replicas because every job
// transition is conditional on the from-state.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"printsmart/internal/config"
	"printsmart/internal/events"
	"printsmart/internal/logger"
	"printsmart/internal/monitor"
	"printsmart/internal/observability"
	"printsmart/internal/orchestrator"
	"printsmart/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "printsmart-orchestrator", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Start a dedicated metrics server on port 8421
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Orchestrator metrics listening on :8421")
		if err := http.ListenAndServe(":8421", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	metrics, err := observability.NewMetrics("printsmart-orchestrator")
	if err != nil {
		log.Fatalf("Failed to init domain metrics: %v", err)
	}

	var emitter events.Emitter = events.Nop{}
	if len(cfg.WebhookURLs) > 0 {
		webhook := events.NewWebhookEmitter(cfg.WebhookURLs, events.WebhookConfig{}, slogger)
		defer webhook.Stop()
		emitter = webhook
	}

	prober := monitor.NewTCPProber()

	mon := monitor.New(db, prober, emitter, slogger, metrics, monitor.Config{
		Interval:        cfg.ProbeInterval,
		LivenessTimeout: cfg.ProbeLivenessTimeout,
		ServiceTimeout:  cfg.ProbeServiceTimeout,
		Concurrency:     cfg.ProbeConcurrency,
	})

	orch := orchestrator.New(db, prober, emitter, slogger, metrics, mon.Recovered(), orchestrator.Config{
		SweepInterval:       cfg.SweepInterval,
		PendingTimeout:      cfg.PendingTimeout,
		ProcessingTimeout:   cfg.ProcessingTimeout,
		AbandonedThreshold:  cfg.AbandonedThreshold,
		StalenessWindow:     cfg.StalenessWindow,
		DispatchTimeout:     cfg.ProbeServiceTimeout,
		PriorityMultipliers: cfg.PriorityMultipliers,
		ClassMultipliers:    cfg.ClassMultipliers,
	})

	go func() {
		if err := mon.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Monitor stopped: %v", err)
		}
	}()
	go func() {
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Orchestrator stopped: %v", err)
		}
	}()

	log.Println("PrintSmart Orchestrator started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")
	cancel()
}
