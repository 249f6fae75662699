// Package middleware provides HTTP middleware for the dashboard API.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type contextKey string

// OperatorKey holds the authenticated operator name on the request context.
const OperatorKey contextKey = "operator"

const (
	bearerPrefix       = "Bearer "
	failedAttemptLimit = 20
	failedAttemptTTL   = time.Minute
)

// TokenValidator validates bearer tokens and returns the operator name
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// AuthMiddleware guards run control routes with bearer tokens
type AuthMiddleware struct {
	validator TokenValidator
	failures  *RateLimiter
}

// NewAuthMiddleware creates the middleware. Clients with too many rejected
// tokens in a minute are refused before validation.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		failures:  NewRateLimiter(failedAttemptLimit, failedAttemptTTL),
	}
}

// Authenticate requires "Authorization: Bearer <token>" on every request
// except CORS preflight.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			deny(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			deny(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		client := clientKey(r)
		if m.failures.IsLimited(client) {
			deny(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}

		operator, err := m.validator.ValidateToken(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			m.failures.Record(client)
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), OperatorKey, operator)))
	})
}

// GetOperator returns the operator set by Authenticate.
func GetOperator(r *http.Request) (string, bool) {
	operator, ok := r.Context().Value(OperatorKey).(string)
	return operator, ok
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter allows each client limit events per window, refilling
// continuously. Clients back at full allowance are forgotten.
type RateLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
	now     func() time.Time
}

// NewRateLimiter limits each client to limit events per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		clients: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// IsLimited reports whether the client has used up its allowance.
func (r *RateLimiter) IsLimited(client string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.clients[client]
	if !ok {
		return false
	}
	tokens := limiter.TokensAt(r.now())
	if tokens >= float64(r.burst) {
		delete(r.clients, client)
		return false
	}
	return tokens < 1
}

// Record consumes one event of the client's allowance.
func (r *RateLimiter) Record(client string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.clients[client]
	if !ok {
		limiter = rate.NewLimiter(r.every, r.burst)
		r.clients[client] = limiter
	}
	limiter.AllowN(r.now(), 1)
}
