// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// CreateAccountRequest is the request body for creating a new account.
type CreateAccountRequest struct {
	Name string `json:"name"`
}

// CreateAccountResponse returns the API key exactly once; only its hash
// is stored.
type CreateAccountResponse struct {
	ID     string `json:"account_id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// BalanceResponse is the response body for balance queries.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// TopupRequest credits the prepaid balance. The idempotency key guards
// against double-submission.
type TopupRequest struct {
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CreatePrinterRequest is the request body for registering a printer.
type CreatePrinterRequest struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	Class          string `json:"class,omitempty"`
	SupportsColor  bool   `json:"supports_color,omitempty"`
	SupportsDuplex bool   `json:"supports_duplex,omitempty"`
}

// PrinterResponse represents a printer in API responses.
type PrinterResponse struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Address             string     `json:"address"`
	Class               string     `json:"class"`
	Status              string     `json:"status"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Active              bool       `json:"active"`
}

// SubmitJobRequest is the request body for submitting a print job.
// Cost is a decimal string; arithmetic happens upstream.
type SubmitJobRequest struct {
	PrinterID  string `json:"printer_id"`
	Cost       string `json:"cost"`
	Priority   int    `json:"priority,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

// SubmitJobResponse is the response body after admission.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID         string     `json:"id"`
	PrinterID  string     `json:"printer_id"`
	Cost       string     `json:"cost"`
	Status     string     `json:"status"`
	Priority   int        `json:"priority"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	LastError  *string    `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	TerminalAt *time.Time `json:"terminal_at,omitempty"`
}

// HistoryEntry is one audit row of a job's transitions.
type HistoryEntry struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// JobHistoryResponse is the response body for transition history.
type JobHistoryResponse struct {
	JobID   string         `json:"job_id"`
	History []HistoryEntry `json:"history"`
}

// RefundEntry is one refund credit in API responses.
type RefundEntry struct {
	JobID     *string   `json:"job_id,omitempty"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRefundsResponse is the response body for refund listings.
type ListRefundsResponse struct {
	Refunds []RefundEntry `json:"refunds"`
}

// JobResultRequest is reported by the dispatch layer on the internal
// route when a device finishes or rejects a job.
type JobResultRequest struct {
	Outcome string `json:"outcome"` // "completed" or "failed"
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
