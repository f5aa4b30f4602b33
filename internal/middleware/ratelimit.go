package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/castellan/gembridge/internal/errors"
)

// rateLimitMessage is the body returned with 429 responses.
const rateLimitMessage = "Too many requests from this IP, please try again later."

// windowBucket tracks request counts for one client within the current window
type windowBucket struct {
	windowStart time.Time
	count       int
}

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter implements a fixed-window request counter keyed by client
// address. Counters live only in memory and reset when the process
// restarts. Tracked addresses are bounded by an LRU cache so a scan across
// many source IPs cannot grow memory without bound.
type RateLimiter struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	buckets *lru.Cache[string, *windowBucket]

	// now allows tests to control the clock
	now func() time.Time

	// OnReject, when set, is invoked once per rejected request
	OnReject func()
}

// NewRateLimiter creates a fixed-window limiter allowing max requests per
// client address per window, tracking at most maxClients addresses.
func NewRateLimiter(window time.Duration, max, maxClients int) (*RateLimiter, error) {
	if window <= 0 {
		return nil, errors.NewValidationError("rate limit window must be positive")
	}
	if max < 0 {
		return nil, errors.NewValidationError("rate limit max cannot be negative")
	}

	buckets, err := lru.New[string, *windowBucket](maxClients)
	if err != nil {
		return nil, errors.WrapInternal(err, "creating rate limit cache")
	}

	return &RateLimiter{
		window:  window,
		max:     max,
		buckets: buckets,
		now:     time.Now,
	}, nil
}

// Allow records a request for key and reports whether it fits in the
// current window.
func (l *RateLimiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	bucket, ok := l.buckets.Get(key)
	if !ok || now.Sub(bucket.windowStart) >= l.window {
		bucket = &windowBucket{windowStart: now}
		l.buckets.Add(key, bucket)
	}

	if bucket.count >= l.max {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: bucket.windowStart.Add(l.window).Sub(now),
		}
	}

	bucket.count++
	return Decision{
		Allowed:   true,
		Remaining: l.max - bucket.count,
	}
}

// Middleware returns a middleware that rejects requests exceeding the limit
// with 429 and a JSON error body.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := l.Allow(clientAddr(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			if l.OnReject != nil {
				l.OnReject()
			}
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": rateLimitMessage})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the host portion of the request's remote address,
// so requests from the same client on different source ports share a bucket.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
