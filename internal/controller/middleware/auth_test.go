package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"printsmart/internal/store"

	"github.com/google/uuid"
)

// mockAccountStore implements AccountStore for testing
type mockAccountStore struct {
	account *store.Account
	err     error
}

func (m *mockAccountStore) GetAccountByAPIKeyHash(ctx context.Context, hash string) (*store.Account, error) {
	return m.account, m.err
}

func TestAuth_MissingAuthHeader(t *testing.T) {
	mw := Auth(&mockAccountStore{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	mw := Auth(&mockAccountStore{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	tests := []string{
		"ps_abc123",       // no scheme
		"Basic ps_abc123", // wrong scheme
	}
	for _, header := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: got status %d, want %d", header, rr.Code, http.StatusUnauthorized)
		}
	}
}

func TestAuth_UnknownKey(t *testing.T) {
	mw := Auth(&mockAccountStore{err: errors.New("no rows")})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ps_unknown")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidKeyAttachesAccount(t *testing.T) {
	account := &store.Account{ID: uuid.New(), Name: "design-team"}
	mw := Auth(&mockAccountStore{account: account})

	var seen *store.Account
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ps_valid")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if seen == nil || seen.ID != account.ID {
		t.Errorf("handler saw account %v, want %v", seen, account)
	}
}

func TestAccountFromContext_Empty(t *testing.T) {
	if _, ok := AccountFromContext(context.Background()); ok {
		t.Error("empty context must not yield an account")
	}
}
