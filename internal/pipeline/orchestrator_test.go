package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawtica/internal/adapter/repo"
	"drawtica/internal/allowance"
	"drawtica/internal/document"
	"drawtica/internal/domain"
	"drawtica/internal/imagegen"
	"drawtica/internal/providers/genai"
)

type stubModel struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (*genai.Response, error)
}

func (m *stubModel) GenerateContent(ctx context.Context, instruction string, image []byte, mime string) (*genai.Response, error) {
	m.calls.Add(1)
	return m.fn(ctx)
}

func placeholderPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for i := 0; i < 100; i++ {
		img.SetGray(i, i, color.Gray{})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageResponse(data []byte) func(context.Context) (*genai.Response, error) {
	return func(context.Context) (*genai.Response, error) {
		return &genai.Response{Candidates: []genai.Candidate{{Parts: []genai.Part{
			{Kind: genai.PartText, Text: "done"},
			{Kind: genai.PartImage, MIMEType: domain.MIMEPNG, Data: data},
		}}}}, nil
	}
}

// noisyPNG returns a PNG of roughly the requested encoded size; random pixels
// keep the encoder from compressing it away.
func noisyPNG(t *testing.T, side int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	rng.Read(img.Pix)
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, img))
	return buf.Bytes()
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type fixture struct {
	store *repo.MemoryStore
	model *stubModel
	orch  *Orchestrator
}

func newFixture(t *testing.T, fn func(context.Context) (*genai.Response, error), opts ...func(*Options)) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &fixture{store: repo.NewMemoryStore(), model: &stubModel{fn: fn}}
	o := Options{
		Transformer: imagegen.NewTransformer(f.model, 0, logger),
		Allowance:   allowance.NewTracker(f.store.Accounts()),
		Timeout:     time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	f.orch = New(o)
	return f
}

func (f *fixture) account(t *testing.T, credits int) string {
	t.Helper()
	acc := &domain.Account{Email: "parent@example.com", PasswordHash: "x", Credits: credits}
	require.NoError(t, f.store.Accounts().Create(context.Background(), acc))
	return acc.ID
}

func (f *fixture) credits(t *testing.T, id string) int {
	t.Helper()
	acc, err := f.store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Credits
}

func kindOf(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	var pe *domain.PipelineError
	require.True(t, errors.As(err, &pe), "expected PipelineError, got %v", err)
	return pe.Kind
}

func TestAccountWithOneCreditGetsDocument(t *testing.T) {
	artifact := placeholderPNG(t)
	f := newFixture(t, imageResponse(artifact))
	id := f.account(t, 1)

	input := noisyPNG(t, 740)
	require.Greater(t, len(input), 2<<20)
	require.LessOrEqual(t, len(input), domain.MaxUploadBytes)

	res, err := f.orch.Run(context.Background(), Input{
		DataURI:   dataURI(domain.MIMEPNG, input),
		Requester: allowance.Requester{AccountID: id},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PDF)
	assert.False(t, res.Anonymous)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, f.credits(t, id))
	assert.Equal(t, 100, res.Preview.Width)

	extracted, err := document.ExtractArtifact(res.PDF)
	require.NoError(t, err)
	assert.Equal(t, artifact, extracted)
}

func TestMockModeReturnsFixedPlaceholder(t *testing.T) {
	f := newFixture(t, nil, func(o *Options) {
		o.Transformer = imagegen.NewTransformer(imagegen.PlaceholderModel{}, 0, zerolog.Nop())
	})
	id := f.account(t, 1)

	input := noisyPNG(t, 740)
	require.Greater(t, len(input), 2<<20)

	res, err := f.orch.Run(context.Background(), Input{
		DataURI:   dataURI(domain.MIMEPNG, input),
		Requester: allowance.Requester{AccountID: id},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PDF)
	assert.Equal(t, imagegen.PlaceholderSide, res.Preview.Width)
	assert.Equal(t, imagegen.PlaceholderSide, res.Preview.Height)
	assert.Equal(t, 0, f.credits(t, id))

	extracted, err := document.ExtractArtifact(res.PDF)
	require.NoError(t, err)
	assert.Equal(t, res.Preview.Data, extracted)
}

func TestAnonymousAtCeilingNeverCallsModel(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)))
	_, err := f.orch.Run(context.Background(), Input{
		DataURI:   dataURI(domain.MIMEPNG, smallPNG(t)),
		Requester: allowance.Requester{FreeUses: allowance.AnonymousCeiling},
	})
	assert.Equal(t, domain.KindAllowanceExhausted, kindOf(t, err))
	assert.ErrorIs(t, err, domain.ErrAllowanceExhausted)
	assert.Zero(t, f.model.calls.Load())
}

func TestTextOnlyResponseIsUpstreamFailure(t *testing.T) {
	f := newFixture(t, func(context.Context) (*genai.Response, error) {
		return &genai.Response{Candidates: []genai.Candidate{{Parts: []genai.Part{
			{Kind: genai.PartText, Text: "I cannot draw that"},
		}}}}, nil
	})
	id := f.account(t, 2)

	_, err := f.orch.Run(context.Background(), Input{
		DataURI:   dataURI(domain.MIMEPNG, smallPNG(t)),
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindUpstreamFailure, kindOf(t, err))
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 2, f.credits(t, id))
	assert.Equal(t, int32(1), f.model.calls.Load())
}

type countingAllowance struct {
	Allowance
	checks atomic.Int32
}

func (c *countingAllowance) Check(ctx context.Context, req allowance.Requester) (allowance.Allowance, error) {
	c.checks.Add(1)
	return c.Allowance.Check(ctx, req)
}

func TestOversizedJPEGRejectedBeforeAllowanceCheck(t *testing.T) {
	var counter *countingAllowance
	f := newFixture(t, imageResponse(placeholderPNG(t)), func(o *Options) {
		counter = &countingAllowance{Allowance: o.Allowance}
		o.Allowance = counter
	})
	id := f.account(t, 1)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16)), nil))
	payload := append(buf.Bytes(), make([]byte, 6<<20)...)

	_, err := f.orch.Run(context.Background(), Input{
		DataURI:   dataURI(domain.MIMEJPEG, payload),
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindInvalidInput, kindOf(t, err))
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Zero(t, counter.checks.Load())
	assert.Zero(t, f.model.calls.Load())
	assert.Equal(t, 1, f.credits(t, id))
}

func TestInvalidInputNeverCallsModel(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  error
	}{
		{name: "gif data uri", input: Input{DataURI: "data:image/gif;base64,R0lGODlhAQABAAAAACw="}, want: domain.ErrUnsupportedMediaType},
		{name: "webp multipart", input: Input{Data: []byte("RIFF"), MIMEType: "image/webp"}, want: domain.ErrUnsupportedMediaType},
		{name: "oversized multipart", input: Input{Data: make([]byte, domain.MaxUploadBytes+1), MIMEType: domain.MIMEPNG}, want: domain.ErrPayloadTooLarge},
		{name: "mislabelled bytes", input: Input{Data: []byte("plain text"), MIMEType: domain.MIMEPNG}, want: domain.ErrMalformedImage},
		{name: "empty", input: Input{}, want: domain.ErrUnsupportedMediaType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, imageResponse(placeholderPNG(t)))
			_, err := f.orch.Run(context.Background(), tc.input)
			assert.Equal(t, domain.KindInvalidInput, kindOf(t, err))
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.model.calls.Load())
		})
	}
}

func TestAccountWithoutCreditsNeverCallsModel(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)))
	id := f.account(t, 0)
	_, err := f.orch.Run(context.Background(), Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindAllowanceExhausted, kindOf(t, err))
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Zero(t, f.model.calls.Load())
}

func TestAnonymousSuccessReportsNewCount(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)))
	res, err := f.orch.Run(context.Background(), Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{FreeUses: 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Anonymous)
	assert.Equal(t, 2, res.FreeUses)
	assert.Equal(t, 1, res.Remaining)
}

func TestUpstreamTimeout(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) (*genai.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	id := f.account(t, 1)

	_, err := f.orch.Run(context.Background(), Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindUpstreamFailure, kindOf(t, err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.credits(t, id))
}

func TestClientGoneDuringCallSkipsDebit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	artifact := placeholderPNG(t)
	var sawCancel atomic.Bool
	f := newFixture(t, func(callCtx context.Context) (*genai.Response, error) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		sawCancel.Store(callCtx.Err() != nil)
		return imageResponse(artifact)(callCtx)
	})
	id := f.account(t, 1)

	_, err := f.orch.Run(ctx, Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindCanceled, kindOf(t, err))
	assert.False(t, sawCancel.Load(), "the model call must not see client cancellation")
	assert.Equal(t, 1, f.credits(t, id))
}

func TestClientGoneBeforeStartDoesNothing(t *testing.T) {
	var counter *countingAllowance
	f := newFixture(t, imageResponse(placeholderPNG(t)), func(o *Options) {
		counter = &countingAllowance{Allowance: o.Allowance}
		o.Allowance = counter
	})
	id := f.account(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Run(ctx, Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	var pe *domain.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindCanceled, pe.Kind)
	assert.Equal(t, domain.StageReceived, pe.Stage)
	assert.Zero(t, counter.checks.Load())
	assert.Zero(t, f.model.calls.Load())
	assert.Equal(t, 1, f.credits(t, id))
}

type failingDebit struct{ Allowance }

func (failingDebit) Debit(context.Context, allowance.Requester) (allowance.Receipt, error) {
	return allowance.Receipt{}, errors.New("connection reset")
}

func TestDebitFailureStillReturnsDocument(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)), func(o *Options) {
		o.Allowance = failingDebit{o.Allowance}
	})
	id := f.account(t, 3)

	res, err := f.orch.Run(context.Background(), Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PDF)
	assert.Equal(t, 2, res.Remaining)
}

func TestComposeFailureIsInternal(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)), func(o *Options) {
		o.Compose = func(domain.Artifact) (document.Document, error) {
			return document.Document{}, errors.New("disk full")
		}
	})
	id := f.account(t, 1)
	_, err := f.orch.Run(context.Background(), Input{
		Data:      smallPNG(t),
		MIMEType:  domain.MIMEPNG,
		Requester: allowance.Requester{AccountID: id},
	})
	assert.Equal(t, domain.KindInternal, kindOf(t, err))
	assert.Equal(t, 1, f.credits(t, id))
}

func TestConcurrentRunsNeverOverdraw(t *testing.T) {
	f := newFixture(t, imageResponse(placeholderPNG(t)))
	id := f.account(t, 1)

	const n = 12
	upload := smallPNG(t)
	var wg sync.WaitGroup
	var succeeded, exhausted atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Run(context.Background(), Input{
				Data:      upload,
				MIMEType:  domain.MIMEPNG,
				Requester: allowance.Requester{AccountID: id},
			})
			if err == nil {
				succeeded.Add(1)
				return
			}
			if domain.KindOf(err) == domain.KindAllowanceExhausted {
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), succeeded.Load()+exhausted.Load())
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
	assert.Equal(t, 0, f.credits(t, id))
}
