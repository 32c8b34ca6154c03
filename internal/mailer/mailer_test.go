package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResendMailerSendsVerification(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	m := NewResendMailer(ResendOptions{
		APIKey:   "re_test",
		From:     "Drawtica <noreply@drawtica.test>",
		BaseURL:  "https://drawtica.test/",
		Locale:   "tr",
		Endpoint: srv.URL,
	})
	if err := m.SendVerification(context.Background(), "ada@example.com", "abc123"); err != nil {
		t.Fatalf("SendVerification error: %v", err)
	}

	if got["subject"] != "Drawtica - E-posta Doğrulama" {
		t.Fatalf("subject = %v", got["subject"])
	}
	to, _ := got["to"].([]any)
	if len(to) != 1 || to[0] != "ada@example.com" {
		t.Fatalf("to = %v", got["to"])
	}
	html, _ := got["html"].(string)
	if !strings.Contains(html, "https://drawtica.test/verify-email?token=abc123") {
		t.Fatalf("link missing from html: %s", html)
	}
}

func TestResendMailerReportsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"domain not verified"}`))
	}))
	defer srv.Close()

	m := NewResendMailer(ResendOptions{APIKey: "k", BaseURL: "https://x", Endpoint: srv.URL})
	err := m.SendPasswordReset(context.Background(), "a@b.c", "t")
	if err == nil || !strings.Contains(err.Error(), "domain not verified") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestLogMailerLogsLink(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	m := NewLogMailer("http://localhost:8080", "noreply@x", "en", &logger)

	if err := m.SendPasswordReset(context.Background(), "ada@example.com", "abc"); err != nil {
		t.Fatalf("SendPasswordReset error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "http://localhost:8080/reset-password?token=abc") {
		t.Fatalf("link not logged: %s", out)
	}
	if !strings.Contains(out, "Drawtica - Reset your password") {
		t.Fatalf("english subject not logged: %s", out)
	}
}
