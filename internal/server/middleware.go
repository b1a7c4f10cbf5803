package server

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/workspace/agent-gateway/internal/logging"
)

// authMiddleware enforces the Bearer token on every route except /v1/health.
// Comparison is constant-time and independent of token length: both sides
// are hashed to a fixed-size digest before compare so a variable-length
// subtle.ConstantTimeCompare never short-circuits on a length mismatch.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		token := header[len(prefix):]
		if !constantTimeEquals(token, s.bridgeToken) {
			writeError(w, http.StatusUnauthorized, "invalid bridge token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// constantTimeEquals reports whether a and b are equal without leaking
// timing information proportional to the length of any shared prefix.
func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		// Still run a comparison against a zero buffer of b's length so
		// callers cannot distinguish "wrong length" from "wrong content"
		// by timing alone.
		subtle.ConstantTimeCompare([]byte(a), make([]byte, len(a)))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestIDMiddleware stamps every request with a correlation id used to
// tie together the handler's log lines, then logs the outcome.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := logging.NewRequestID()
		w.Header().Set("X-Request-Id", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// pollLimiter rate-limits the read-heavy polling endpoints per client IP
// so a misbehaving caller looping on /state or /logtail cannot starve the
// single active session's log I/O.
type pollLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newPollLimiter(ratePerSecond float64, burst int) *pollLimiter {
	return &pollLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (p *pollLimiter) allow(key string) bool {
	p.mu.Lock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rate, p.burst)
		p.limiters[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

func (p *pollLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !p.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
