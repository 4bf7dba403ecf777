package handlers

import (
	"context"
	"database/sql"
	"time"

	"printsmart/internal/events"
	"printsmart/internal/gate"
	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock transaction
type mockTx struct{}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error { return nil }

func (m *mockTx) Rollback() error { return nil }

// Mock Store
type mockStore struct {
	beginTxErr error
	pingErr    error

	// Account hooks
	createAccountErr    error
	getAccountByIDResp  *store.Account
	getAccountByIDErr   error
	capturedAccountName string

	// Printer hooks
	createPrinterErr  error
	getPrinterResp    *store.Printer
	getPrinterErr     error
	listPrintersResp  []*store.Printer
	listPrintersErr   error
	capturedActiveArg bool

	// Job hooks
	getJobByIDResp *store.Job
	getJobByIDErr  error
	getHistoryResp []*store.StatusHistory
	getHistoryErr  error
	transitionErr  error
	capturedFrom   store.JobStatus
	capturedTo     store.JobStatus

	// Ledger hooks
	creditErr        error
	capturedKey      string
	listEntriesResp  []*store.LedgerEntry
	listEntriesErr   error
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	return &mockTx{}, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockStore) CreateAccount(ctx context.Context, account *store.Account, hashedKey string) error {
	m.capturedAccountName = account.Name
	return m.createAccountErr
}

func (m *mockStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*store.Account, error) {
	return m.getAccountByIDResp, m.getAccountByIDErr
}

func (m *mockStore) GetAccountByAPIKeyHash(ctx context.Context, hash string) (*store.Account, error) {
	return nil, nil // Handled by Auth middleware, not Handlers
}

func (m *mockStore) CreatePrinter(ctx context.Context, printer *store.Printer) error {
	return m.createPrinterErr
}

func (m *mockStore) GetPrinterByID(ctx context.Context, id uuid.UUID) (*store.Printer, error) {
	return m.getPrinterResp, m.getPrinterErr
}

func (m *mockStore) ListPrinters(ctx context.Context, activeOnly bool) ([]*store.Printer, error) {
	m.capturedActiveArg = activeOnly
	return m.listPrintersResp, m.listPrintersErr
}

func (m *mockStore) RecordProbeResult(ctx context.Context, id uuid.UUID, status store.PrinterStatus, checkedAt time.Time, consecutiveFailures int) error {
	return nil // Monitor territory, not Handlers
}

func (m *mockStore) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	return nil // Admission goes through the gate
}

func (m *mockStore) GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	return m.getJobByIDResp, m.getJobByIDErr
}

func (m *mockStore) GetJobsByStatus(ctx context.Context, status store.JobStatus, olderThan time.Time) ([]*store.Job, error) {
	return nil, nil
}

func (m *mockStore) GetJobsByPrinter(ctx context.Context, printerID uuid.UUID, statuses []store.JobStatus) ([]*store.Job, error) {
	return nil, nil
}

func (m *mockStore) Transition(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, from, to store.JobStatus, fields store.TransitionFields) error {
	m.capturedFrom = from
	m.capturedTo = to
	return m.transitionErr
}

func (m *mockStore) GetHistory(ctx context.Context, jobID uuid.UUID) ([]*store.StatusHistory, error) {
	return m.getHistoryResp, m.getHistoryErr
}

func (m *mockStore) CountJobsByStatus(ctx context.Context, status store.JobStatus) (int64, error) {
	return 0, nil
}

func (m *mockStore) Debit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error {
	return nil
}

func (m *mockStore) Credit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error {
	m.capturedKey = key
	return m.creditErr
}

func (m *mockStore) ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, direction store.LedgerDirection) ([]*store.LedgerEntry, error) {
	return m.listEntriesResp, m.listEntriesErr
}

func (m *mockStore) GetEntryByKey(ctx context.Context, key string) (*store.LedgerEntry, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) ListDanglingRefunds(ctx context.Context) ([]*store.LedgerEntry, error) {
	return nil, nil
}

func (m *mockStore) ListCancelledWithoutRefund(ctx context.Context) ([]*store.Job, error) {
	return nil, nil
}

// Mock Admitter
type mockGate struct {
	job        *store.Job
	err        error
	capturedReq gate.Request
}

func (m *mockGate) Admit(ctx context.Context, req gate.Request) (*store.Job, error) {
	m.capturedReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.job, nil
}

// Recording emitter
type recordingEmitter struct {
	jobChanges []events.JobStatusChange
}

func (e *recordingEmitter) JobStatusChanged(ev events.JobStatusChange) {
	e.jobChanges = append(e.jobChanges, ev)
}

func (e *recordingEmitter) DeviceStatusChanged(events.DeviceStatusChange) {}

func (e *recordingEmitter) RefundIssued(events.RefundIssued) {}
