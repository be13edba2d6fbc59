package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/auth"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user's ID from the request context, or
// empty when the request is unauthenticated.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware validates the bearer token and puts the user ID on the
// request context. Missing or invalid credentials are always 401.
func AuthMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				respondError(w, http.StatusUnauthorized, "User authentication required")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimiter keeps one token bucket per user. Entries are never evicted;
// the working set is bounded by the active user population.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(cfg.Window / time.Duration(cfg.MaxRequests)),
		burst:    cfg.MaxRequests,
	}
}

func (rl *rateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[userID] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware throttles cart operations per user.
func RateLimitMiddleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	rl := newRateLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID != "" && !rl.allow(userID) {
				respondError(w, http.StatusTooManyRequests, "Too many cart requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
