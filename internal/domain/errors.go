package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidToken         = errors.New("invalid token")
	ErrEmailTaken           = errors.New("email already registered")
	ErrMissingCredentials   = errors.New("email and password required")
	ErrWeakPassword         = errors.New("password too weak")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrMalformedImage       = errors.New("malformed image payload")
	ErrAllowanceExhausted   = errors.New("allowance exhausted")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrUnsupportedPlan      = errors.New("unsupported plan")
	ErrDuplicateOperation   = errors.New("duplicate operation")
	ErrPaymentUnavailable   = errors.New("payment provider unavailable")
	ErrPaymentMismatch      = errors.New("payment does not match transaction")
	ErrTransactionExpired   = errors.New("transaction expired")
)

// ErrorKind classifies failures of the transformation pipeline.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindAllowanceExhausted ErrorKind = "allowance_exhausted"
	KindUpstreamFailure    ErrorKind = "upstream_failure"
	KindInternal           ErrorKind = "internal_error"
	KindAccounting         ErrorKind = "accounting_failure"
	KindCanceled           ErrorKind = "canceled"
)

// PipelineError records which stage failed and how the failure is classified.
// Err keeps the upstream detail for logging only.
type PipelineError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// KindOf extracts the pipeline error kind, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
