// Package main is the entry point for the printsmart controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printsmart/internal/config"
	"printsmart/internal/controller"
	"printsmart/internal/events"
	"printsmart/internal/gate"
	"printsmart/internal/logger"
	"printsmart/internal/observability"
	"printsmart/internal/store"
	"printsmart/internal/store/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	// Load Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	// Setup Database
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(db.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "printsmart-controller", cfg.OTELEndpoint)
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

	domainMetrics, err := observability.NewMetrics("printsmart-controller")
	if err != nil {
		log.Fatalf("Failed to init domain metrics: %v", err)
	}

	// Observable Gauges (Async) that query the DB only when scraped.
	meter := otel.Meter("printsmart-controller")
	registerGauge(meter, "printsmart.jobs.pending", "Jobs waiting for dispatch", func(ctx context.Context) (int64, error) {
		return db.CountJobsByStatus(ctx, store.JobStatusPending)
	})
	registerGauge(meter, "printsmart.jobs.processing", "Jobs on a device", func(ctx context.Context) (int64, error) {
		return db.CountJobsByStatus(ctx, store.JobStatusProcessing)
	})
	registerGauge(meter, "printsmart.printers.offline", "Printers last seen offline", func(ctx context.Context) (int64, error) {
		return db.CountPrintersByStatus(ctx, store.PrinterStatusOffline)
	})

	var emitter events.Emitter = events.Nop{}
	if len(cfg.WebhookURLs) > 0 {
		webhook := events.NewWebhookEmitter(cfg.WebhookURLs, events.WebhookConfig{}, slogger)
		defer webhook.Stop()
		emitter = webhook
	}

	admissionGate := gate.New(db, emitter, slogger, domainMetrics, cfg.StalenessWindow, cfg.MaxRetries)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, db, admissionGate, emitter, domainMetrics, cfg.InternalToken, metricsHandler, slogger)

	go func() {
		log.Printf("PrintSmart Controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}

func registerGauge(meter metric.Meter, name, description string, count func(context.Context) (int64, error)) {
	_, err := meter.Int64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			n, err := count(ctx)
			if err != nil {
				log.Printf("Failed to observe %s: %v", name, err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(n)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register %s metric: %v", name, err)
	}
}
