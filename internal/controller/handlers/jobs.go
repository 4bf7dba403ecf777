package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"printsmart/internal/controller/middleware"
	"printsmart/internal/events"
	"printsmart/internal/gate"
	"printsmart/internal/store"
	"printsmart/pkg/api"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitJob handles POST /jobs. Admission runs through the submission
// gate; rejections are immediate and carry the concrete reason.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	printerID, err := uuid.Parse(req.PrinterID)
	if err != nil {
		h.httpError(w, "Invalid printer id", http.StatusBadRequest)
		return
	}

	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		h.httpError(w, "Cost must be a decimal string", http.StatusBadRequest)
		return
	}

	job, err := h.gate.Admit(r.Context(), gate.Request{
		AccountID:  account.ID,
		PrinterID:  printerID,
		Cost:       cost,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		h.admissionError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.SubmitJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// admissionError maps gate rejections to HTTP statuses. The message
// names the reason so callers can act on it without parsing codes.
func (h *Handlers) admissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gate.ErrInvalidRequest):
		h.httpError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, gate.ErrPrinterNotFound):
		h.httpError(w, "Printer not found", http.StatusNotFound)
	case errors.Is(err, gate.ErrAccountNotFound):
		h.httpError(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, gate.ErrDeviceUnavailable):
		h.httpError(w, "Printer is not available for new jobs", http.StatusConflict)
	case errors.Is(err, gate.ErrInsufficientBalance):
		h.httpError(w, "Insufficient balance to cover the job cost", http.StatusPaymentRequired)
	default:
		h.httpError(w, "Failed to submit job", http.StatusInternalServerError)
	}
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadOwnedJob(w, r)
	if !ok {
		return
	}
	h.respondJson(w, http.StatusOK, jobResponse(job))
}

// GetJobHistory handles GET /jobs/{id}/history.
func (h *Handlers) GetJobHistory(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadOwnedJob(w, r)
	if !ok {
		return
	}

	history, err := h.store.GetHistory(r.Context(), job.ID)
	if err != nil {
		h.httpError(w, "Failed to load job history", http.StatusInternalServerError)
		return
	}

	resp := api.JobHistoryResponse{
		JobID:   job.ID.String(),
		History: make([]api.HistoryEntry, 0, len(history)),
	}
	for _, entry := range history {
		resp.History = append(resp.History, api.HistoryEntry{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Reason:     entry.Reason,
			Timestamp:  entry.CreatedAt,
		})
	}

	h.respondJson(w, http.StatusOK, resp)
}

// ReportJobResult handles PUT /internal/jobs/{id}/result. The dispatch
// layer reports device outcomes here; a completed job keeps its debit,
// a failed one goes back through the retry path.
func (h *Handlers) ReportJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	var req api.JobResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var to store.JobStatus
	fields := store.TransitionFields{}
	switch req.Outcome {
	case "completed":
		to = store.JobStatusCompleted
		fields.Reason = "device reported completion"
	case "failed":
		to = store.JobStatusFailed
		fields.Reason = "device reported failure"
		if req.Error != "" {
			fields.LastError = &req.Error
		}
	default:
		h.httpError(w, "Outcome must be completed or failed", http.StatusBadRequest)
		return
	}

	err = h.store.Transition(r.Context(), nil, id, store.JobStatusProcessing, to, fields)
	if err != nil {
		if errors.Is(err, store.ErrStaleState) {
			h.httpError(w, "Job is not processing", http.StatusConflict)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to record job result", http.StatusInternalServerError)
		return
	}

	job, err := h.store.GetJobByID(r.Context(), id)
	if err != nil {
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	if to == store.JobStatusCompleted && h.metrics != nil {
		h.metrics.JobsCompleted.Add(r.Context(), 1)
	}
	h.emitter.JobStatusChanged(events.JobStatusChange{
		JobID:      job.ID,
		PrinterID:  job.PrinterID,
		FromStatus: store.JobStatusProcessing,
		ToStatus:   to,
		Reason:     fields.Reason,
		RetryCount: job.RetryCount,
	})

	h.respondJson(w, http.StatusOK, jobResponse(job))
}

// loadOwnedJob parses the id path value, loads the job and verifies the
// authenticated account owns it.
func (h *Handlers) loadOwnedJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return nil, false
	}

	job, err := h.store.GetJobByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return nil, false
		}
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return nil, false
	}

	if job.AccountID != account.ID {
		// Hide other accounts' jobs entirely.
		h.httpError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}

	return job, true
}

func jobResponse(job *store.Job) api.JobResponse {
	return api.JobResponse{
		ID:         job.ID.String(),
		PrinterID:  job.PrinterID.String(),
		Cost:       job.Cost.StringFixed(2),
		Status:     string(job.Status),
		Priority:   job.Priority,
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt,
		TerminalAt: job.TerminalAt,
	}
}
