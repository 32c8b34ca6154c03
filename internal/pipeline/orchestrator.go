package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"drawtica/internal/allowance"
	"drawtica/internal/document"
	"drawtica/internal/domain"
	"drawtica/internal/imagegen"
	"drawtica/internal/infra"
	"drawtica/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// Transformer produces line art for a validated upload.
type Transformer interface {
	Transform(ctx context.Context, upload domain.Upload) (domain.Artifact, error)
}

// Allowance checks and consumes usage units.
type Allowance interface {
	Check(ctx context.Context, req allowance.Requester) (allowance.Allowance, error)
	Debit(ctx context.Context, req allowance.Requester) (allowance.Receipt, error)
}

// Input is one transformation request. DataURI wins when set; otherwise
// Data and MIMEType carry a multipart upload.
type Input struct {
	DataURI   string
	Data      []byte
	MIMEType  string
	Requester allowance.Requester
	RequestID string
}

// Result is what a successful request returns to the client.
type Result struct {
	PDF       []byte
	Preview   domain.Artifact
	Placement document.Placement
	Remaining int
	FreeUses  int
	Anonymous bool
}

type Options struct {
	Transformer Transformer
	Allowance   Allowance
	Compose     func(domain.Artifact) (document.Document, error)
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Logger      *infra.Logger
}

// Orchestrator runs validate, allowance check, transform, compose and debit
// strictly in that order and stops at the first failure.
type Orchestrator struct {
	transformer Transformer
	allowance   Allowance
	compose     func(domain.Artifact) (document.Document, error)
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *infra.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		transformer: opts.Transformer,
		allowance:   opts.Allowance,
		compose:     opts.Compose,
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if o.compose == nil {
		o.compose = document.Compose
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	if o.logger == nil {
		discard := zerolog.New(io.Discard)
		o.logger = &discard
	}
	return o
}

// Run executes one request. Failures are *domain.PipelineError values. A
// failed debit after a successful transformation is logged and the result is
// still returned.
func (o *Orchestrator) Run(ctx context.Context, in Input) (res *Result, err error) {
	log := o.logger.With().
		Str("request_id", in.RequestID).
		Str("account_id", in.Requester.AccountID).
		Bool("anonymous", in.Requester.Anonymous()).
		Logger()
	defer func() {
		outcome := domain.OutcomeSuccess
		if err != nil {
			outcome = domain.OutcomeFor(domain.KindOf(err))
		}
		o.metrics.ObserveOutcome(outcome)
	}()

	stage := domain.StageReceived
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Info().Str("stage", string(stage)).Msg("transform: client gone before start")
		return nil, &domain.PipelineError{Kind: domain.KindCanceled, Stage: stage, Err: ctxErr}
	}
	log.Debug().Str("stage", string(stage)).Msg("transform: received")

	stage = domain.StageValidated
	start := time.Now()
	upload, err := validate(in)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		log.Info().Err(err).Str("stage", string(stage)).Msg("transform: input rejected")
		return nil, &domain.PipelineError{Kind: domain.KindInvalidInput, Stage: stage, Err: err}
	}

	stage = domain.StageAllowanceChecked
	start = time.Now()
	checked, err := o.allowance.Check(ctx, in.Requester)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		return nil, o.allowanceFailure(log, err)
	}

	// The model call ignores client cancellation; only the timeout bounds it.
	stage = domain.StageTransforming
	start = time.Now()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	artifact, err := o.transformer.Transform(callCtx, upload)
	cancel()
	took := time.Since(start)
	o.metrics.ObserveStage(stage, took)
	o.metrics.ObserveUpstream(took, err)
	if err != nil {
		log.Error().Err(err).Str("stage", string(stage)).Dur("took", took).Msg("transform: upstream failure")
		return nil, &domain.PipelineError{Kind: domain.KindUpstreamFailure, Stage: stage, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn().Str("stage", string(stage)).Dur("took", took).Msg("transform: client gone, skipping debit")
		return nil, &domain.PipelineError{Kind: domain.KindCanceled, Stage: stage, Err: ctxErr}
	}

	stage = domain.StageComposing
	start = time.Now()
	doc, err := o.compose(artifact)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("stage", string(stage)).Msg("transform: compose failed")
		return nil, &domain.PipelineError{Kind: domain.KindInternal, Stage: stage, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn().Str("stage", string(stage)).Msg("transform: client gone, skipping debit")
		return nil, &domain.PipelineError{Kind: domain.KindCanceled, Stage: stage, Err: ctxErr}
	}

	res = &Result{
		PDF:       doc.PDF,
		Preview:   doc.Preview,
		Placement: doc.Placement,
		Anonymous: checked.Anonymous,
	}

	stage = domain.StageDebitCommitted
	start = time.Now()
	receipt, err := o.allowance.Debit(ctx, in.Requester)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		o.metrics.DebitFailed()
		log.Error().
			Err(err).
			Str("stage", string(stage)).
			Str("kind", string(domain.KindAccounting)).
			Msg("transform: debit failed after success")
		res.Remaining = max(checked.Remaining-1, 0)
		res.FreeUses = checked.FreeUses
		return res, nil
	}
	res.Remaining = receipt.Remaining
	res.FreeUses = receipt.FreeUses

	log.Info().Int("remaining", res.Remaining).Msg("transform: completed")
	return res, nil
}

func (o *Orchestrator) allowanceFailure(log zerolog.Logger, err error) error {
	stage := domain.StageAllowanceChecked
	switch {
	case errors.Is(err, domain.ErrAllowanceExhausted),
		errors.Is(err, domain.ErrInsufficientCredits),
		errors.Is(err, domain.ErrUnauthorized):
		log.Info().Err(err).Str("stage", string(stage)).Msg("transform: no allowance")
		return &domain.PipelineError{Kind: domain.KindAllowanceExhausted, Stage: stage, Err: err}
	default:
		log.Error().Err(err).Str("stage", string(stage)).Msg("transform: allowance check failed")
		return &domain.PipelineError{Kind: domain.KindInternal, Stage: stage, Err: err}
	}
}

func validate(in Input) (domain.Upload, error) {
	if in.DataURI != "" {
		return imagegen.ParseDataURI(in.DataURI)
	}
	return imagegen.ValidateUpload(in.MIMEType, in.Data)
}
