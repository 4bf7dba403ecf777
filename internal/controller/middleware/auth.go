// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"printsmart/internal/auth"
	"printsmart/internal/store"
)

// accountKey is the context key for the authenticated account.
type accountKey struct{}

// AccountStore is the lookup the auth middleware needs.
type AccountStore interface {
	GetAccountByAPIKeyHash(ctx context.Context, hash string) (*store.Account, error)
}

// Auth validates the bearer API key and attaches the account to the
// request context. Every authenticated operation is scoped by account.
func Auth(accounts AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			account, err := accounts.GetAccountByAPIKeyHash(r.Context(), auth.HashKey(parts[1]))
			if err != nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			ctx := NewContextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithAccount attaches an account to the context. Exported
// for handler tests.
func NewContextWithAccount(ctx context.Context, account *store.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext extracts the authenticated account.
func AccountFromContext(ctx context.Context) (*store.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(*store.Account)
	return account, ok
}
