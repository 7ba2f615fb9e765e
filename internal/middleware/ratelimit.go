package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"propsearch-bknd/internal/metrics"
)

// Decision is one rate-limit verdict for a caller.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is the injected rate-limit collaborator: local token buckets in a
// single process, a shared store in production. The search core only
// depends on this interface.
type Limiter interface {
	Allow(callerID string) Decision
}

// LocalLimiter keeps a token bucket per caller in process memory. Under
// horizontal scaling each replica enforces its own budget, so the effective
// limit is best-effort; strict guarantees need a distributed limiter behind
// the same interface.
type LocalLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerBucket
	rps     rate.Limit
	burst   int
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	callerIdleTTL  = 10 * time.Minute
	maxCallers     = 10000
)

func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	return &LocalLimiter{
		callers: make(map[string]*callerBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *LocalLimiter) Allow(callerID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.callers[callerID]
	if !ok {
		if len(l.callers) >= maxCallers {
			l.evictIdleLocked()
		}
		b = &callerBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.callers[callerID] = b
	}
	b.lastSeen = time.Now()

	if !b.limiter.Allow() {
		return Decision{
			Allowed:    false,
			RetryAfter: time.Duration(float64(time.Second) / float64(l.rps)),
		}
	}
	return Decision{Allowed: true, Remaining: int(b.limiter.Tokens())}
}

func (l *LocalLimiter) evictIdleLocked() {
	cutoff := time.Now().Add(-callerIdleTTL)
	for id, b := range l.callers {
		if b.lastSeen.Before(cutoff) {
			delete(l.callers, id)
		}
	}
}

// RateLimit rejects over-budget callers before any downstream query runs.
type RateLimit struct {
	limiter Limiter
	logr    *zap.Logger
}

func NewRateLimit(limiter Limiter, logr *zap.Logger) *RateLimit {
	return &RateLimit{limiter: limiter, logr: logr}
}

func (m *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerID(r)
		d := m.limiter.Allow(caller)
		if !d.Allowed {
			metrics.RateLimited.Inc()
			m.logr.Warn("rate limited", zap.String("caller", caller))

			retrySec := int(math.Ceil(d.RetryAfter.Seconds()))
			if retrySec < 1 {
				retrySec = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retrySec))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
