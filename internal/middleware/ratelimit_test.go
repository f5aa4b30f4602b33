package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	limiter, err := NewRateLimiter(15*time.Minute, 100, 10)
	require.NoError(t, err)

	// Request 100 within the window passes, request 101 does not
	for i := 0; i < 100; i++ {
		decision := limiter.Allow("10.0.0.1")
		require.True(t, decision.Allowed, "request %d should be allowed", i+1)
	}
	decision := limiter.Allow("10.0.0.1")
	assert.False(t, decision.Allowed, "request 101 should be rejected")
	assert.Equal(t, 0, decision.Remaining)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestRateLimiterIndependentClients(t *testing.T) {
	limiter, err := NewRateLimiter(time.Minute, 2, 10)
	require.NoError(t, err)

	require.True(t, limiter.Allow("10.0.0.1").Allowed)
	require.True(t, limiter.Allow("10.0.0.1").Allowed)
	require.False(t, limiter.Allow("10.0.0.1").Allowed)

	// A different address has its own bucket
	assert.True(t, limiter.Allow("10.0.0.2").Allowed)
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter, err := NewRateLimiter(time.Minute, 1, 10)
	require.NoError(t, err)

	current := time.Now()
	limiter.now = func() time.Time { return current }

	require.True(t, limiter.Allow("10.0.0.1").Allowed)
	require.False(t, limiter.Allow("10.0.0.1").Allowed)

	// Advance past the window; the counter starts over
	current = current.Add(time.Minute + time.Second)
	assert.True(t, limiter.Allow("10.0.0.1").Allowed)
}

func TestRateLimiterInvalidSettings(t *testing.T) {
	_, err := NewRateLimiter(0, 100, 10)
	assert.Error(t, err)

	_, err = NewRateLimiter(time.Minute, -1, 10)
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, err := NewRateLimiter(time.Minute, 1, 10)
	require.NoError(t, err)

	rejections := 0
	limiter.OnReject = func() { rejections++ }

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First request passes with rate limit headers
	req := httptest.NewRequest("POST", "/gemini-test", nil)
	req.RemoteAddr = "192.0.2.1:51000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	// Second request from the same host (different port) is rejected
	req = httptest.NewRequest("POST", "/gemini-test", nil)
	req.RemoteAddr = "192.0.2.1:51001"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests from this IP, please try again later."}`, rr.Body.String())
	assert.Equal(t, 1, rejections)

	// A different client is unaffected
	req = httptest.NewRequest("POST", "/gemini-test", nil)
	req.RemoteAddr = "192.0.2.2:51000"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:12345"
	assert.Equal(t, "192.0.2.7", clientAddr(req))

	req.RemoteAddr = "unix-socket-peer"
	assert.Equal(t, "unix-socket-peer", clientAddr(req))
}
