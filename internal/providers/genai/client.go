package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"drawtica/internal/infra"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash-preview-image-generation"

	maxResponseBytes = 64 << 20
)

var (
	// ErrMissingAPIKey is returned when the client has no key to call with.
	ErrMissingAPIKey = errors.New("genai: api key not configured")
	// ErrUnrecognizedPart is returned when a response part matches no known shape.
	ErrUnrecognizedPart = errors.New("genai: unrecognized response part")
)

// APIError carries a non-2xx status from the Gemini API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the Gemini generateContent endpoint with an instruction and
// one inline image.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       *string           `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// NewClient constructs a Gemini client. A nil HTTP client gets a default with
// a generous timeout; callers bound individual calls through the context.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends the instruction and image in a single request and
// decodes every returned part. It never retries.
func (c *Client) GenerateContent(ctx context.Context, instruction string, image []byte, mime string) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	text := instruction
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: &text},
					{InlineData: &geminiInlineData{
						MimeType: mime,
						Data:     base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	start := time.Now()
	var raw geminiGenerateContentResponse
	err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &raw)
	c.logger.Debug().
		Str("model", c.model).
		Dur("took", time.Since(start)).
		Err(err).
		Msg("genai: generateContent")
	if err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

func decodeResponse(raw geminiGenerateContentResponse) (*Response, error) {
	resp := &Response{Candidates: make([]Candidate, 0, len(raw.Candidates))}
	if raw.PromptFeedback != nil {
		resp.BlockReason = raw.PromptFeedback.BlockReason
	}
	for ci, candidate := range raw.Candidates {
		out := Candidate{FinishReason: candidate.FinishReason}
		for pi, part := range candidate.Content.Parts {
			decoded, err := decodePart(part)
			if err != nil {
				return nil, fmt.Errorf("candidate %d part %d: %w", ci, pi, err)
			}
			out.Parts = append(out.Parts, decoded)
		}
		resp.Candidates = append(resp.Candidates, out)
	}
	return resp, nil
}

// decodePart maps one wire part onto the tagged union. Inline data wins over
// text when both are present.
func decodePart(part geminiPart) (Part, error) {
	switch {
	case part.InlineData != nil:
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return Part{}, fmt.Errorf("decode inline data: %w", err)
		}
		kind := PartData
		if strings.HasPrefix(strings.ToLower(part.InlineData.MimeType), "image/") && len(data) > 0 {
			kind = PartImage
		}
		return Part{Kind: kind, MIMEType: part.InlineData.MimeType, Data: data}, nil
	case part.FileData != nil:
		return Part{Kind: PartData, MIMEType: part.FileData.MimeType, URI: part.FileData.FileURI}, nil
	case part.Text != nil:
		return Part{Kind: PartText, Text: *part.Text, Thought: part.Thought}, nil
	default:
		return Part{}, ErrUnrecognizedPart
	}
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if gjson.ValidBytes(data) {
			apiErr.Message = gjson.GetBytes(data, "error.message").String()
			apiErr.Code = gjson.GetBytes(data, "error.status").String()
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}
