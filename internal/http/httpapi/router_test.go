package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawtica/internal/adapter/repo"
	"drawtica/internal/allowance"
	"drawtica/internal/billing"
	"drawtica/internal/domain"
	"drawtica/internal/http/handlers"
	"drawtica/internal/i18n"
	"drawtica/internal/identity"
	"drawtica/internal/imagegen"
	"drawtica/internal/infra"
	"drawtica/internal/mailer"
	"drawtica/internal/metrics"
	"drawtica/internal/pipeline"
	"drawtica/internal/ratelimit"
)

type testServer struct {
	srv    *httptest.Server
	store  *repo.MemoryStore
	tokens *identity.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &infra.Config{
		AppEnv:         "test",
		JWTSecret:      "router-secret",
		PublicBaseURL:  "https://drawtica.example.com",
		DefaultLocale:  "tr",
		AuthRateLimit:  5,
		AuthRateWindow: time.Minute,
	}
	logger := zerolog.Nop()
	store := repo.NewMemoryStore()
	tokens := identity.NewTokenIssuer(cfg.JWTSecret, time.Hour)
	m := metrics.New()

	app := handlers.NewApp(cfg, logger)
	app.Metrics = m
	app.Tokens = tokens
	app.Identity = identity.NewService(identity.Options{
		Accounts:        store.Accounts(),
		Tokens:          tokens,
		Mailer:          mailer.NewLogMailer(cfg.PublicBaseURL, "noreply@example.com", "tr", nil),
		StartingCredits: 3,
	})
	app.Billing = billing.NewService(billing.NewStubProvider(), store.Transactions(), nil)
	app.Pipeline = pipeline.New(pipeline.Options{
		Transformer: imagegen.NewTransformer(imagegen.PlaceholderModel{}, 0, logger),
		Allowance:   allowance.NewTracker(store.Accounts()),
		Timeout:     5 * time.Second,
		Metrics:     m,
	})

	router := NewRouter(app, Options{Verifier: tokens, RateStore: ratelimit.NewMemoryStore()})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func photoDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			c := uint8(40)
			if x > 20 && x < 44 && y > 10 && y < 38 {
				c = 220
			}
			img.Set(x, y, color.RGBA{R: c, G: c, B: c, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRegisterLoginTransformFlow(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "Parent@Example.com", "password": "Crayon#2024", "name": "Parent",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "parent@example.com", user["email"])
	assert.Equal(t, float64(3), user["credits"])

	resp, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "parent@example.com", "password": "Crayon#2024",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token := body["token"].(string)

	resp, body = s.do(t, http.MethodPost, "/transform", token, map[string]any{"image": photoDataURI(t)}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["anonymous"])
	assert.Equal(t, float64(2), body["remaining"])
	pdf, err := base64.StdEncoding.DecodeString(body["pdf"].(string))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.True(t, strings.HasPrefix(body["preview"].(string), "data:image/png;base64,"))

	resp, body = s.do(t, http.MethodGet, "/me", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["credits"])
}

func TestAnonymousTransformCeiling(t *testing.T) {
	s := newTestServer(t)
	uri := photoDataURI(t)

	resp, body := s.do(t, http.MethodPost, "/transform", "", map[string]any{"image": uri, "free_uses": 2}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["anonymous"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, float64(3), body["free_uses"])

	resp, body = s.do(t, http.MethodPost, "/transform", "", map[string]any{"image": uri, "free_uses": 3}, map[string]string{"Accept-Language": "en"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, i18n.T("en", i18n.FreeUsesExhausted), body["error"])
}

func TestAccountWithoutCreditsGetsPaymentRequired(t *testing.T) {
	s := newTestServer(t)
	id := seedAccount(t, s.store, "broke@example.com", 0)
	token, err := s.tokens.IssueToken(id)
	require.NoError(t, err)

	resp, body := s.do(t, http.MethodPost, "/transform", token, map[string]any{"image": photoDataURI(t)}, nil)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, i18n.T("tr", i18n.CreditsExhausted), body["error"])
}

func TestInvalidTokenIsRejectedNotAnonymous(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/transform", "not-a-jwt", map[string]any{"image": photoDataURI(t)}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"email": "nobody@example.com", "password": "Wrong#Pass1"}
	for i := 0; i < 5; i++ {
		resp, _ := s.do(t, http.MethodPost, "/auth/login", "", creds, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}
	resp, body := s.do(t, http.MethodPost, "/auth/login", "", creds, map[string]string{"X-Locale": "en"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, i18n.T("en", i18n.TooManyAttempts), body["error"])

	// Routes outside /auth are not limited.
	resp, _ = s.do(t, http.MethodGet, "/v1/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointExposesOutcomes(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/transform", "", map[string]any{"image": "data:image/gif;base64,R0lGOD=="}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	res, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `drawtica_transform_outcomes_total{outcome="rejected_input"} 1`)
	assert.Contains(t, text, `route="/transform"`)
}

func seedAccount(t *testing.T, store *repo.MemoryStore, email string, credits int) string {
	t.Helper()
	acc := &domain.Account{Email: email, PasswordHash: "x", Credits: credits, Tier: domain.TierStandard}
	require.NoError(t, store.Accounts().Create(context.Background(), acc))
	return acc.ID
}
