package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T) Limiter {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "rl:"}
}

func TestAllowWithinLimit(t *testing.T) {
	limiter := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, "quote:1.2.3.4", time.Minute, 3)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	allowed, remaining, _, err := limiter.Allow(ctx, "quote:1.2.3.4", time.Minute, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("fourth request should be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected zero remaining, got %d", remaining)
	}
}

func TestAllowUnconfiguredPassesThrough(t *testing.T) {
	var limiter Limiter
	allowed, _, _, err := limiter.Allow(context.Background(), "k", time.Minute, 10)
	if err != nil || !allowed {
		t.Fatalf("unconfigured limiter must allow, allowed=%v err=%v", allowed, err)
	}
}

func TestMiddlewareSetsHeadersAndBlocks(t *testing.T) {
	limiter := testLimiter(t)
	h := Handler{
		Limiter: limiter,
		Config: Config{
			Key:    func(r *http.Request) string { return "quote:" + r.RemoteAddr },
			Window: time.Minute,
			Max:    1,
		},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	wrapped := h.Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("limit header missing")
	}

	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("retry-after header missing")
	}
}
