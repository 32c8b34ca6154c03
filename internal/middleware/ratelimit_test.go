package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"drawtica/internal/ratelimit"
)

type recordingStore struct {
	keys []string
}

func (s *recordingStore) Hit(_ context.Context, key string, limit int, window time.Duration) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return ratelimit.Decision{Allowed: true, Count: 1, ResetAt: time.Now().Add(window)}, nil
}

func noContent(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRateLimitKeysByScopeAndClientIP(t *testing.T) {
	tests := []struct {
		name      string
		hops      int
		forwarded []string
		remote    string
		wantKey   string
	}{
		{name: "forwarded header ignored without trusted proxy", forwarded: []string{"203.0.113.1"}, remote: "198.51.100.10:1234", wantKey: "auth:198.51.100.10"},
		{name: "one proxy takes right-most entry", hops: 1, forwarded: []string{"10.0.0.9, 203.0.113.1"}, remote: "192.0.2.1:443", wantKey: "auth:203.0.113.1"},
		{name: "two proxies", hops: 2, forwarded: []string{"10.0.0.9, 203.0.113.1, 192.0.2.50"}, remote: "192.0.2.1:443", wantKey: "auth:203.0.113.1"},
		{name: "repeated headers form one chain", hops: 1, forwarded: []string{"10.0.0.9", "203.0.113.4"}, remote: "192.0.2.1:443", wantKey: "auth:203.0.113.4"},
		{name: "chain shorter than hops", hops: 2, forwarded: []string{"203.0.113.1"}, remote: "192.0.2.1:443", wantKey: "auth:192.0.2.1"},
		{name: "malformed trusted entry", hops: 1, forwarded: []string{"unknown"}, remote: "192.0.2.1:443", wantKey: "auth:192.0.2.1"},
		{name: "ipv6 peer", remote: "[2001:db8::2]:443", wantKey: "auth:2001:db8::2"},
		{name: "peer without port", remote: "203.0.113.9", wantKey: "auth:203.0.113.9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &recordingStore{}
			h := RateLimit(RateLimitOptions{Store: store, Scope: "auth", Limit: 5, Window: time.Minute, TrustedProxyHops: tc.hops})(http.HandlerFunc(noContent))
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = tc.remote
			for _, v := range tc.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d", rec.Code)
			}
			if len(store.keys) != 1 || store.keys[0] != tc.wantKey {
				t.Fatalf("keys = %v, want [%s]", store.keys, tc.wantKey)
			}
		})
	}
}

func TestRateLimitIgnoresRotatedForwardedFor(t *testing.T) {
	tests := []struct {
		name string
		hops int
		// chain builds the header for attempt i; the trusted proxy always
		// appends the same client address.
		chain func(i int) string
	}{
		{name: "direct", chain: func(i int) string { return fmt.Sprintf("10.0.0.%d", i) }},
		{name: "behind one proxy", hops: 1, chain: func(i int) string { return fmt.Sprintf("10.0.0.%d, 203.0.113.7", i) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := RateLimit(RateLimitOptions{Store: ratelimit.NewMemoryStore(), Scope: "auth", Limit: 5, Window: time.Minute, TrustedProxyHops: tc.hops})(http.HandlerFunc(noContent))
			limited := 0
			for i := 0; i < 50; i++ {
				req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
				req.RemoteAddr = "198.51.100.10:1234"
				req.Header.Set("X-Forwarded-For", tc.chain(i))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code == http.StatusTooManyRequests {
					limited++
				}
			}
			if limited != 45 {
				t.Fatalf("limited = %d, want 45", limited)
			}
		})
	}
}
