package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type validatorFunc func(string) (string, error)

func (f validatorFunc) ValidateToken(token string) (string, error) { return f(token) }

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, _ := GetOperator(r)
		_, _ = w.Write([]byte(operator))
	})
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(validatorFunc(func(token string) (string, error) {
		if token == "good" {
			return "alice", nil
		}
		return "", errors.New("bad token")
	}))
	handler := m.Authenticate(okHandler(t))

	tests := []struct {
		name   string
		method string
		header string
		code   int
		body   string
	}{
		{"missing header", http.MethodPost, "", http.StatusUnauthorized, ""},
		{"basic auth", http.MethodPost, "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
		{"bad token", http.MethodPost, "Bearer nope", http.StatusUnauthorized, ""},
		{"good token", http.MethodPost, "Bearer good", http.StatusOK, "alice"},
		{"preflight", http.MethodOptions, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	assert.False(t, limiter.IsLimited("ip"))
	limiter.Record("ip")
	limiter.Record("ip")
	assert.True(t, limiter.IsLimited("ip"))
	assert.False(t, limiter.IsLimited("other"))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("any origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		CORS()(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted origins", func(t *testing.T) {
		handler := CORS("http://ok.example")(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

		req.Header.Set("Origin", "http://ok.example")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "http://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "http://x")
		rec := httptest.NewRecorder()
		CORS()(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	})
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.Record("ip")
	assert.True(t, limiter.IsLimited("ip"))

	now = now.Add(61 * time.Second)
	assert.False(t, limiter.IsLimited("ip"))
	assert.Empty(t, limiter.clients)
}

func TestAuthenticate_LimitsFailedAttempts(t *testing.T) {
	m := NewAuthMiddleware(validatorFunc(func(string) (string, error) {
		return "", errors.New("bad token")
	}))
	handler := m.Authenticate(okHandler(t))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil)
		req.RemoteAddr = remote
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < failedAttemptLimit; i++ {
		assert.Equal(t, http.StatusUnauthorized, send("10.0.0.1:"+strconv.Itoa(5000+i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:6000"))
	assert.Equal(t, http.StatusUnauthorized, send("10.0.0.2:5000"))
}
