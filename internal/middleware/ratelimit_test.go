package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// stub limiter with a scripted verdict
type stubLimiter struct {
	decision Decision
	lastID   string
}

func (s *stubLimiter) Allow(callerID string) Decision {
	s.lastID = callerID
	return s.decision
}

func TestRateLimitAllowsUnderBudget(t *testing.T) {
	lim := &stubLimiter{decision: Decision{Allowed: true, Remaining: 5}}
	mw := NewRateLimit(lim, zap.NewNop())

	called := false
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties/search", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected next handler to run")
	}
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	lim := &stubLimiter{decision: Decision{Allowed: false, RetryAfter: 2500 * 1e6}}
	mw := NewRateLimit(lim, zap.NewNop())

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties/search", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3" {
		t.Fatalf("expected Retry-After 3, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	lim := &stubLimiter{decision: Decision{Allowed: true}}
	mw := NewRateLimit(lim, zap.NewNop())
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if lim.lastID != "203.0.113.9" {
		t.Fatalf("expected first forwarded address, got %q", lim.lastID)
	}
}

func TestLocalLimiterEnforcesBurst(t *testing.T) {
	l := NewLocalLimiter(1, 2)

	if d := l.Allow("a"); !d.Allowed {
		t.Fatal("first call should pass")
	}
	if d := l.Allow("a"); !d.Allowed {
		t.Fatal("second call should pass within burst")
	}
	if d := l.Allow("a"); d.Allowed {
		t.Fatal("third immediate call should be rejected")
	}

	// Independent callers get independent buckets.
	if d := l.Allow("b"); !d.Allowed {
		t.Fatal("different caller should pass")
	}
}
