package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"printsmart/internal/auth"
	"printsmart/internal/controller/middleware"
	"printsmart/internal/store"
	"printsmart/pkg/api"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccount handles POST /accounts.
// The generated API key is returned exactly once; only its hash is stored.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		h.httpError(w, "Name is required", http.StatusBadRequest)
		return
	}

	key, err := auth.GenerateKey()
	if err != nil {
		h.httpError(w, "Failed to generate api key", http.StatusInternalServerError)
		return
	}

	account := &store.Account{
		ID:        uuid.New(),
		Name:      req.Name,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateAccount(r.Context(), account, auth.HashKey(key)); err != nil {
		h.httpError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.CreateAccountResponse{
		ID:     account.ID.String(),
		Name:   account.Name,
		APIKey: key,
	})
}

// GetBalance handles GET /balance for the authenticated account.
func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Re-read: the context copy may predate recent ledger activity.
	current, err := h.store.GetAccountByID(r.Context(), account.ID)
	if err != nil {
		h.httpError(w, "Failed to load balance", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.BalanceResponse{
		AccountID: current.ID.String(),
		Balance:   current.Balance.StringFixed(2),
	})
}

// Topup handles POST /balance/topup. Idempotent under the caller's key.
func (h *Handlers) Topup(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.TopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		h.httpError(w, "Amount must be a positive decimal", http.StatusBadRequest)
		return
	}
	if req.IdempotencyKey == "" {
		h.httpError(w, "Idempotency key is required", http.StatusBadRequest)
		return
	}

	err = h.store.Credit(r.Context(), nil, account.ID, nil, amount,
		"topup:"+req.IdempotencyKey, "balance topup")
	if err != nil && !errors.Is(err, store.ErrAlreadyApplied) {
		h.httpError(w, "Failed to credit balance", http.StatusInternalServerError)
		return
	}

	current, err := h.store.GetAccountByID(r.Context(), account.ID)
	if err != nil {
		h.httpError(w, "Failed to load balance", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.BalanceResponse{
		AccountID: current.ID.String(),
		Balance:   current.Balance.StringFixed(2),
	})
}

// ListRefunds handles GET /refunds for the authenticated account.
func (h *Handlers) ListRefunds(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.store.ListEntriesByAccount(r.Context(), account.ID, store.LedgerCredit)
	if err != nil {
		h.httpError(w, "Failed to list refunds", http.StatusInternalServerError)
		return
	}

	resp := api.ListRefundsResponse{Refunds: []api.RefundEntry{}}
	for _, e := range entries {
		if e.JobID == nil {
			// Topup, not a refund.
			continue
		}
		jobID := e.JobID.String()
		resp.Refunds = append(resp.Refunds, api.RefundEntry{
			JobID:     &jobID,
			Amount:    e.Amount.StringFixed(2),
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}

	h.respondJson(w, http.StatusOK, resp)
}
