// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"printsmart/internal/controller/handlers"
	"printsmart/internal/controller/middleware"
	"printsmart/internal/events"
	"printsmart/internal/observability"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(addr string, store handlers.StoreFactory, gate handlers.Admitter, emitter events.Emitter, metrics *observability.Metrics, internalToken string, metricsHandler http.Handler, log *slog.Logger) *Server {
	h := handlers.New(store, gate, emitter, metrics, log)
	authMW := middleware.Auth(store)
	rateMW := middleware.RateLimit()
	internalMW := middleware.RequireInternalAuth(internalToken)

	authed := func(fn http.HandlerFunc) http.Handler {
		return authMW(rateMW(fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	mux.HandleFunc("POST /accounts", h.CreateAccount)

	// Public authenticated apis
	mux.Handle("GET /balance", authed(h.GetBalance))
	mux.Handle("POST /balance/topup", authed(h.Topup))
	mux.Handle("GET /refunds", authed(h.ListRefunds))
	mux.Handle("POST /jobs", authed(h.SubmitJob))
	mux.Handle("GET /jobs/{id}", authed(h.GetJob))
	mux.Handle("GET /jobs/{id}/history", authed(h.GetJobHistory))
	mux.Handle("GET /printers", authed(h.ListPrinters))
	mux.Handle("GET /printers/{id}", authed(h.GetPrinter))

	// Internal endpoints
	// Called by operators and the dispatch layer; these should run on a
	// separate port or strict network rules.
	mux.Handle("POST /internal/printers", internalMW(http.HandlerFunc(h.CreatePrinter)))
	mux.Handle("PUT /internal/jobs/{id}/result", internalMW(http.HandlerFunc(h.ReportJobResult)))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
