package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"drawtica/internal/infra"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

type ResendOptions struct {
	APIKey     string
	From       string
	BaseURL    string
	Locale     string
	Endpoint   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// ResendMailer delivers through the Resend HTTP API.
type ResendMailer struct {
	composer
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *infra.Logger
}

func NewResendMailer(opts ResendOptions) *ResendMailer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultResendEndpoint
	}
	return &ResendMailer{
		composer: newComposer(opts.BaseURL, opts.From, opts.Locale),
		apiKey:   strings.TrimSpace(opts.APIKey),
		endpoint: endpoint,
		client:   client,
		logger:   opts.Logger,
	}
}

func (m *ResendMailer) SendVerification(ctx context.Context, to, token string) error {
	msg, err := m.verification(to, token)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *ResendMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	msg, err := m.passwordReset(to, token)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *ResendMailer) deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusBadRequest {
		detail := gjson.GetBytes(data, "message").String()
		if detail == "" {
			detail = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("resend status %d: %s", resp.StatusCode, detail)
	}
	if m.logger != nil {
		m.logger.Debug().
			Str("email_id", gjson.GetBytes(data, "id").String()).
			Str("subject", msg.Subject).
			Msg("mailer: email sent")
	}
	return nil
}
