package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drawtica/internal/ratelimit"
)

type fakeVerifier map[string]string

func (f fakeVerifier) VerifyToken(token string) (string, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid")
}

func accountEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(AccountIDFromContext(r.Context())))
	})
}

func TestOptionalAuth(t *testing.T) {
	verifier := fakeVerifier{"good": "acct-1"}
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "no header is anonymous", wantStatus: http.StatusOK, wantBody: ""},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "acct-1"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "acct-1"},
		{name: "invalid token rejected", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme rejected", header: "Basic good", wantStatus: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transform", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			OptionalAuth(verifier)(accountEcho()).ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && rec.Body.String() != tc.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), LocaleKey, "en"))
	rec := httptest.NewRecorder()
	RequireAuth(fakeVerifier{})(accountEcho()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "unauthorized" || body["error"] == "" {
		t.Fatalf("body = %#v", body)
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store down")
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	var limited []string
	mw := RateLimit(RateLimitOptions{
		Store:     ratelimit.NewMemoryStore(),
		Scope:     "auth",
		Limit:     2,
		Window:    time.Minute,
		Logger:    zerolog.Nop(),
		OnLimited: func(scope string) { limited = append(limited, scope) },
	})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("missing Retry-After")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if len(limited) != 1 || limited[0] != "auth" {
		t.Fatalf("limited = %v", limited)
	}

	// Another client keeps its own window.
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "198.51.100.8:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d", rec.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	var logs bytes.Buffer
	mw := RateLimit(RateLimitOptions{Store: failingStore{}, Scope: "auth", Limit: 1, Window: time.Minute, Logger: zerolog.New(&logs)})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(logs.Bytes(), []byte("store unavailable")) {
		t.Fatalf("expected warning, got %s", logs.String())
	}
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var logs bytes.Buffer
	h := RequestID(Logger(zerolog.New(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})))
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var line map[string]any
	if err := json.Unmarshal(logs.Bytes(), &line); err != nil {
		t.Fatalf("decode log: %v (%s)", err, logs.String())
	}
	if line["request_id"] != "rid-1" || line["path"] != "/v1/healthz" || line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(2) {
		t.Fatalf("log line = %#v", line)
	}
	if rec.Header().Get("X-Request-ID") != "rid-1" {
		t.Fatalf("request id not echoed")
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/transform", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("preflight status = %d headers = %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodPost, "/transform", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow origin for unknown site")
	}
}
