package postgres

import (
	"context"
	"database/sql"
	"errors"

	"printsmart/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateAccount(ctx context.Context, account *store.Account, hashedKey string) error {
	query := `
		INSERT INTO accounts (id, name, balance, api_key_hash, rate_limit, rate_limit_burst, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Balance,
		hashedKey,
		account.RateLimit,
		account.RateLimitBurst,
		account.CreatedAt,
	)
	return err
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (*store.Account, error) {
	query := `
		SELECT id, name, balance, rate_limit, rate_limit_burst, created_at
		FROM accounts WHERE id = $1
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) GetAccountByAPIKeyHash(ctx context.Context, hash string) (*store.Account, error) {
	query := `
		SELECT id, name, balance, rate_limit, rate_limit_burst, created_at
		FROM accounts WHERE api_key_hash = $1
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, hash))
}

func (s *Store) scanAccount(row *sql.Row) (*store.Account, error) {
	var a store.Account
	err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.RateLimit, &a.RateLimitBurst, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
