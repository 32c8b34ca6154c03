package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"drawtica/internal/domain"
	"drawtica/internal/infra"
	"drawtica/internal/providers/genai"
)

// Model is the generative backend. Implementations make exactly one upstream
// call per invocation.
type Model interface {
	GenerateContent(ctx context.Context, instruction string, image []byte, mime string) (*genai.Response, error)
}

// Transformer turns a validated upload into line art through a Model.
type Transformer struct {
	model   Model
	limiter *rate.Limiter
	logger  infra.Logger
}

// NewTransformer wraps model. maxRPS <= 0 disables the upstream rate cap.
func NewTransformer(model Model, maxRPS float64, logger infra.Logger) *Transformer {
	t := &Transformer{model: model, logger: logger}
	if maxRPS > 0 {
		burst := int(maxRPS)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(maxRPS), burst)
	}
	return t
}

// Transform sends the fixed instruction and the upload, then picks the first
// image part of the response. No image yields ErrGenerationFailed.
func (t *Transformer) Transform(ctx context.Context, upload domain.Upload) (domain.Artifact, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return domain.Artifact{}, fmt.Errorf("upstream rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := t.model.GenerateContent(ctx, Instruction, upload.Data, upload.MIMEType)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("generate content: %w", err)
	}

	part, ok := resp.FirstImage()
	if !ok {
		t.logger.Warn().
			Str("block_reason", resp.BlockReason).
			Str("model_text", truncate(resp.Text(), 200)).
			Dur("took", time.Since(start)).
			Msg("imagegen: response carried no image")
		return domain.Artifact{}, domain.ErrGenerationFailed
	}

	mime := strings.ToLower(strings.TrimSpace(part.MIMEType))
	if sniffed := http.DetectContentType(part.Data); mime == "" || (sniffed != mime && isSupportedArtifact(sniffed)) {
		mime = sniffed
	}
	if !isSupportedArtifact(mime) {
		return domain.Artifact{}, fmt.Errorf("%w: unsupported artifact type %q", domain.ErrGenerationFailed, mime)
	}
	w, h := genai.DecodeImageDimensions(part.Data)
	if w == 0 || h == 0 {
		return domain.Artifact{}, fmt.Errorf("%w: undecodable artifact", domain.ErrGenerationFailed)
	}

	t.logger.Debug().
		Str("mime", mime).
		Int("width", w).
		Int("height", h).
		Dur("took", time.Since(start)).
		Msg("imagegen: artifact received")

	return domain.Artifact{Data: part.Data, MIMEType: mime, Width: w, Height: h}, nil
}

func isSupportedArtifact(mime string) bool {
	return mime == domain.MIMEPNG || mime == domain.MIMEJPEG
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Model = (*genai.Client)(nil)
