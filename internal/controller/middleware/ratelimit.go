package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"printsmart/internal/store"
	"printsmart/pkg/api"

	"golang.org/x/time/rate"
)

// RateLimit throttles submissions per account using the account's own
// limit fields. A zero limit means unlimited.
func RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limiters := sync.Map{} // account ID -> *cachedLimiter

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := AccountFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(api.ErrorResponse{
					Error: "unauthorized",
					Code:  "401",
				})
				return
			}

			if account.RateLimit > 0 {
				limiter := getOrCreateLimiter(&limiters, account, 5*time.Minute)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func getOrCreateLimiter(limiters *sync.Map, account *store.Account, ttl time.Duration) *rate.Limiter {
	if cached, ok := limiters.Load(account.ID); ok {
		c := cached.(*cachedLimiter)
		if time.Now().Before(c.expiresAt) {
			return c.limiter
		}
		// expired, rebuild with current account settings
	}

	limiter := rate.NewLimiter(
		rate.Limit(account.RateLimit),
		account.RateLimitBurst,
	)
	limiters.Store(account.ID, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(ttl),
	})
	return limiter
}
