package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zynqcloud/securevault/internal/httpx"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"golang.org/x/time/rate"
)

const (
	// defaultUploadConcurrency is the fallback slot count when maxConcurrent ≤ 0.
	defaultUploadConcurrency = 256

	// retryAfterSeconds is the value of the Retry-After header sent on 503.
	retryAfterSeconds = "5"

	// capacityErrorPayload is the fixed JSON body returned when the limiter rejects a request.
	capacityErrorPayload = `{"error":"server at capacity — retry in 5s"}`
)

// UploadLimiter caps the number of concurrently active upload goroutines
// using a non-blocking channel semaphore (spec §5's worker-pool guidance
// for large-file crypto/IO). When the semaphore is full, new requests
// receive HTTP 503 + Retry-After immediately rather than queuing.
type UploadLimiter struct {
	sem chan struct{}
}

// NewUploadLimiter creates a limiter allowing at most maxConcurrent simultaneous uploads.
func NewUploadLimiter(maxConcurrent int) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultUploadConcurrency
	}
	return &UploadLimiter{sem: make(chan struct{}, maxConcurrent)}
}

// Limit wraps a handler so that each request must acquire a slot from the
// semaphore before proceeding. Requests that cannot acquire immediately get 503.
func (l *UploadLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.Header().Set("X-Active-Uploads", strconv.Itoa(len(l.sem)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(capacityErrorPayload)) //nolint:errcheck
		}
	})
}

// Active returns the number of upload slots currently in use.
func (l *UploadLimiter) Active() int { return len(l.sem) }

// Cap returns the maximum number of concurrent upload slots.
func (l *UploadLimiter) Cap() int { return cap(l.sem) }

// RateLimiter is a per-client-IP token bucket (spec §6:
// RATE_LIMIT_WINDOW_MS / RATE_LIMIT_MAX_REQUESTS), distinct in mechanism
// from UploadLimiter above: this bounds requests per unit time, not
// concurrency. Buckets are created lazily and never evicted — acceptable
// at the scale this service targets; a production deployment fronted by
// many distinct IPs would want an LRU here.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	r       rate.Limit
	burst   int
}

// NewRateLimiter builds a limiter allowing maxRequests per window.
func NewRateLimiter(window time.Duration, maxRequests int) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		r:       rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
	}
}

func (l *RateLimiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.r, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Limit rejects requests from a client IP exceeding its token bucket with
// RateLimited (429, spec §7).
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !l.bucketFor(key).Allow() {
			httpx.Error(w, vaulterr.New(vaulterr.RateLimited, "too many requests, slow down"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
