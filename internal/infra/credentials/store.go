// Package credentials keeps third-party API keys in the integration_tokens
// table so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"drawtica/internal/infra"
	"drawtica/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
	ProviderResend = "resend"
)

type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) ResendAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderResend)
}

// Resolve prefers an explicitly configured key and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil || s.sql == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderGemini, key)
}

func (s *Store) SetResendAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderResend, key)
}

// Set stores token for provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	raw, err := json.Marshal(map[string]any{
		"rotated_at": s.now().UTC().Format(time.RFC3339),
		"suffix":     keySuffix(token),
	})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func keySuffix(token string) string {
	if len(token) <= 4 {
		return ""
	}
	return token[len(token)-4:]
}
