// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"printsmart/internal/events"
	"printsmart/internal/gate"
	"printsmart/internal/observability"
	"printsmart/internal/store"
	"printsmart/pkg/api"
)

// StoreFactory combines the store interfaces the controller needs.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.AccountStore
	store.PrinterStore
	store.JobStore
	store.LedgerStore
}

// Admitter is the submission gate as the handlers see it.
type Admitter interface {
	Admit(ctx context.Context, req gate.Request) (*store.Job, error)
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store   StoreFactory
	gate    Admitter
	emitter events.Emitter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a new Handlers instance.
func New(s StoreFactory, g Admitter, emitter events.Emitter, metrics *observability.Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{store: s, gate: g, emitter: emitter, metrics: metrics, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
