package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"printsmart/internal/controller/middleware"
	"printsmart/internal/events"
	"printsmart/internal/gate"
	"printsmart/internal/logger"
	"printsmart/internal/store"
	"printsmart/pkg/api"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testAccount() *store.Account {
	return &store.Account{
		ID:      uuid.New(),
		Name:    "test-account",
		Balance: decimal.RequireFromString("10.00"),
	}
}

func authedRequest(method, target string, body []byte, account *store.Account) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := middleware.NewContextWithAccount(req.Context(), account)
	return req.WithContext(ctx)
}

func TestSubmitJob(t *testing.T) {
	account := testAccount()
	printerID := uuid.New()
	jobID := uuid.New()

	validReq := api.SubmitJobRequest{
		PrinterID: printerID.String(),
		Cost:      "1.50",
	}
	validBody, _ := json.Marshal(validReq)

	admittedJob := &store.Job{
		ID:        jobID,
		AccountID: account.ID,
		PrinterID: printerID,
		Cost:      decimal.RequireFromString("1.50"),
		Status:    store.JobStatusPending,
	}

	tests := []struct {
		name           string
		body           []byte
		gateSetup      func(*mockGate)
		expectedStatus int
		expectedInBody string
	}{
		{
			name:           "Success",
			body:           validBody,
			gateSetup:      func(g *mockGate) { g.job = admittedJob },
			expectedStatus: http.StatusOK,
			expectedInBody: "job_id",
		},
		{
			name:           "Invalid JSON",
			body:           []byte(`{invalid-json}`),
			gateSetup:      func(g *mockGate) {},
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "Invalid request body",
		},
		{
			name:           "Bad printer id",
			body:           []byte(`{"printer_id": "not-a-uuid", "cost": "1.50"}`),
			gateSetup:      func(g *mockGate) {},
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "Invalid printer id",
		},
		{
			name:           "Bad cost",
			body:           []byte(`{"printer_id": "` + printerID.String() + `", "cost": "abc"}`),
			gateSetup:      func(g *mockGate) {},
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "Cost must be a decimal string",
		},
		{
			name:           "Printer offline",
			body:           validBody,
			gateSetup:      func(g *mockGate) { g.err = gate.ErrDeviceUnavailable },
			expectedStatus: http.StatusConflict,
			expectedInBody: "not available",
		},
		{
			name:           "Insufficient balance",
			body:           validBody,
			gateSetup:      func(g *mockGate) { g.err = gate.ErrInsufficientBalance },
			expectedStatus: http.StatusPaymentRequired,
			expectedInBody: "Insufficient balance",
		},
		{
			name:           "Printer not found",
			body:           validBody,
			gateSetup:      func(g *mockGate) { g.err = gate.ErrPrinterNotFound },
			expectedStatus: http.StatusNotFound,
			expectedInBody: "Printer not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &mockGate{}
			tt.gateSetup(g)
			h := New(&mockStore{}, g, events.Nop{}, nil, logger.New())

			req := authedRequest(http.MethodPost, "/jobs", tt.body, account)
			rr := httptest.NewRecorder()
			h.SubmitJob(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedStatus)
			}
			if tt.expectedInBody != "" && !strings.Contains(rr.Body.String(), tt.expectedInBody) {
				t.Errorf("handler returned unexpected body: got %v want substring %v",
					rr.Body.String(), tt.expectedInBody)
			}
		})
	}
}

func TestSubmitJob_PassesAccountFromContext(t *testing.T) {
	account := testAccount()
	printerID := uuid.New()

	g := &mockGate{job: &store.Job{ID: uuid.New(), PrinterID: printerID, Status: store.JobStatusPending}}
	h := New(&mockStore{}, g, events.Nop{}, nil, logger.New())

	body, _ := json.Marshal(api.SubmitJobRequest{PrinterID: printerID.String(), Cost: "1.50", Priority: 9})
	req := authedRequest(http.MethodPost, "/jobs", body, account)
	rr := httptest.NewRecorder()
	h.SubmitJob(rr, req)

	if g.capturedReq.AccountID != account.ID {
		t.Errorf("gate got account %v, want the authenticated %v", g.capturedReq.AccountID, account.ID)
	}
	if g.capturedReq.Priority != 9 {
		t.Errorf("gate got priority %d, want 9", g.capturedReq.Priority)
	}
}

func TestGetJob(t *testing.T) {
	account := testAccount()
	jobID := uuid.New()

	ownJob := &store.Job{
		ID:        jobID,
		AccountID: account.ID,
		PrinterID: uuid.New(),
		Cost:      decimal.RequireFromString("1.50"),
		Status:    store.JobStatusProcessing,
		CreatedAt: time.Now(),
	}
	othersJob := &store.Job{
		ID:        jobID,
		AccountID: uuid.New(),
		PrinterID: uuid.New(),
		Cost:      decimal.RequireFromString("1.50"),
		Status:    store.JobStatusProcessing,
	}

	tests := []struct {
		name           string
		jobIDParam     string
		mockSetup      func(*mockStore)
		expectedStatus int
	}{
		{
			name:           "Success",
			jobIDParam:     jobID.String(),
			mockSetup:      func(m *mockStore) { m.getJobByIDResp = ownJob },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid UUID",
			jobIDParam:     "not-a-uuid",
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Not found",
			jobIDParam:     jobID.String(),
			mockSetup:      func(m *mockStore) { m.getJobByIDErr = store.ErrNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Another account's job is hidden",
			jobIDParam:     jobID.String(),
			mockSetup:      func(m *mockStore) { m.getJobByIDResp = othersJob },
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{}
			tt.mockSetup(mock)
			h := New(mock, &mockGate{}, events.Nop{}, nil, logger.New())

			req := authedRequest(http.MethodGet, "/jobs/"+tt.jobIDParam, nil, account)
			req.SetPathValue("id", tt.jobIDParam)
			rr := httptest.NewRecorder()
			h.GetJob(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestReportJobResult(t *testing.T) {
	jobID := uuid.New()
	doneJob := &store.Job{
		ID:        jobID,
		AccountID: uuid.New(),
		PrinterID: uuid.New(),
		Cost:      decimal.RequireFromString("1.50"),
		Status:    store.JobStatusCompleted,
		CreatedAt: time.Now(),
	}

	tests := []struct {
		name           string
		body           string
		mockSetup      func(*mockStore)
		expectedStatus int
		expectedTo     store.JobStatus
	}{
		{
			name:           "Completed",
			body:           `{"outcome": "completed"}`,
			mockSetup:      func(m *mockStore) { m.getJobByIDResp = doneJob },
			expectedStatus: http.StatusOK,
			expectedTo:     store.JobStatusCompleted,
		},
		{
			name:           "Failed with error",
			body:           `{"outcome": "failed", "error": "paper jam"}`,
			mockSetup:      func(m *mockStore) { m.getJobByIDResp = doneJob },
			expectedStatus: http.StatusOK,
			expectedTo:     store.JobStatusFailed,
		},
		{
			name:           "Unknown outcome",
			body:           `{"outcome": "maybe"}`,
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Job no longer processing",
			body:           `{"outcome": "completed"}`,
			mockSetup:      func(m *mockStore) { m.transitionErr = store.ErrStaleState },
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{}
			tt.mockSetup(mock)
			h := New(mock, &mockGate{}, events.Nop{}, nil, logger.New())

			req := httptest.NewRequest(http.MethodPut, "/internal/jobs/"+jobID.String()+"/result",
				bytes.NewReader([]byte(tt.body)))
			req.SetPathValue("id", jobID.String())
			rr := httptest.NewRecorder()
			h.ReportJobResult(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v, body %s",
					rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedTo != "" {
				if mock.capturedFrom != store.JobStatusProcessing {
					t.Errorf("transition from %s, want processing", mock.capturedFrom)
				}
				if mock.capturedTo != tt.expectedTo {
					t.Errorf("transition to %s, want %s", mock.capturedTo, tt.expectedTo)
				}
			}
		})
	}
}

func TestReportJobResult_EmitsStatusChange(t *testing.T) {
	jobID := uuid.New()
	printerID := uuid.New()
	job := &store.Job{
		ID:         jobID,
		PrinterID:  printerID,
		Status:     store.JobStatusCompleted,
		RetryCount: 1,
	}

	tests := []struct {
		name       string
		body       string
		wantTo     store.JobStatus
		wantReason string
	}{
		{
			name:       "Completion is announced",
			body:       `{"outcome": "completed"}`,
			wantTo:     store.JobStatusCompleted,
			wantReason: "device reported completion",
		},
		{
			name:       "Failure is announced",
			body:       `{"outcome": "failed", "error": "out of paper"}`,
			wantTo:     store.JobStatusFailed,
			wantReason: "device reported failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{getJobByIDResp: job}
			emitter := &recordingEmitter{}
			h := New(mock, &mockGate{}, emitter, nil, logger.New())

			req := httptest.NewRequest(http.MethodPut, "/internal/jobs/"+jobID.String()+"/result",
				bytes.NewReader([]byte(tt.body)))
			req.SetPathValue("id", jobID.String())
			rr := httptest.NewRecorder()
			h.ReportJobResult(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("handler returned status %d, body %s", rr.Code, rr.Body.String())
			}
			if len(emitter.jobChanges) != 1 {
				t.Fatalf("got %d job status events, want 1", len(emitter.jobChanges))
			}

			ev := emitter.jobChanges[0]
			if ev.JobID != jobID || ev.PrinterID != printerID {
				t.Errorf("event for job %s printer %s, want %s / %s", ev.JobID, ev.PrinterID, jobID, printerID)
			}
			if ev.FromStatus != store.JobStatusProcessing {
				t.Errorf("event from %s, want processing", ev.FromStatus)
			}
			if ev.ToStatus != tt.wantTo {
				t.Errorf("event to %s, want %s", ev.ToStatus, tt.wantTo)
			}
			if ev.Reason != tt.wantReason {
				t.Errorf("event reason %q, want %q", ev.Reason, tt.wantReason)
			}
			if ev.RetryCount != job.RetryCount {
				t.Errorf("event retry count %d, want %d", ev.RetryCount, job.RetryCount)
			}
		})
	}
}

func TestReportJobResult_NoEventOnStaleState(t *testing.T) {
	jobID := uuid.New()
	mock := &mockStore{transitionErr: store.ErrStaleState}
	emitter := &recordingEmitter{}
	h := New(mock, &mockGate{}, emitter, nil, logger.New())

	req := httptest.NewRequest(http.MethodPut, "/internal/jobs/"+jobID.String()+"/result",
		bytes.NewReader([]byte(`{"outcome": "completed"}`)))
	req.SetPathValue("id", jobID.String())
	rr := httptest.NewRecorder()
	h.ReportJobResult(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("handler returned status %d, want 409", rr.Code)
	}
	if len(emitter.jobChanges) != 0 {
		t.Errorf("got %d job status events, want none on a rejected report", len(emitter.jobChanges))
	}
}
