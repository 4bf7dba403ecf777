package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"printsmart/internal/store"

	"github.com/google/uuid"
)

const printerColumns = `id, name, address, class, supports_color, supports_duplex,
	status, last_checked_at, consecutive_failures, active, created_at`

func (s *Store) CreatePrinter(ctx context.Context, printer *store.Printer) error {
	query := `
		INSERT INTO printers (id, name, address, class, supports_color, supports_duplex, status, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		printer.ID,
		printer.Name,
		printer.Address,
		printer.Class,
		printer.SupportsColor,
		printer.SupportsDuplex,
		printer.Status,
		printer.Active,
		printer.CreatedAt,
	)
	return err
}

func (s *Store) GetPrinterByID(ctx context.Context, id uuid.UUID) (*store.Printer, error) {
	query := "SELECT " + printerColumns + " FROM printers WHERE id = $1"

	p, err := scanPrinter(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPrinters(ctx context.Context, activeOnly bool) ([]*store.Printer, error) {
	query := "SELECT " + printerColumns + " FROM printers"
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var printers []*store.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

// RecordProbeResult is the monitor's only write path into the registry.
func (s *Store) RecordProbeResult(ctx context.Context, id uuid.UUID, status store.PrinterStatus, checkedAt time.Time, consecutiveFailures int) error {
	query := `
		UPDATE printers
		SET status = $1, last_checked_at = $2, consecutive_failures = $3
		WHERE id = $4
	`

	res, err := s.db.ExecContext(ctx, query, status, checkedAt, consecutiveFailures, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPrintersByStatus(ctx context.Context, status store.PrinterStatus) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM printers WHERE status = $1 AND active", status).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrinter(row rowScanner) (*store.Printer, error) {
	var p store.Printer
	var lastChecked sql.NullTime
	err := row.Scan(
		&p.ID, &p.Name, &p.Address, &p.Class, &p.SupportsColor, &p.SupportsDuplex,
		&p.Status, &lastChecked, &p.ConsecutiveFailures, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		p.LastCheckedAt = &lastChecked.Time
	}
	return &p, nil
}
