package domain

// Stage enumerates the steps of one transformation request.
type Stage string

const (
	StageReceived         Stage = "received"
	StageValidated        Stage = "validated"
	StageAllowanceChecked Stage = "allowance_checked"
	StageTransforming     Stage = "transforming"
	StageComposing        Stage = "composing"
	StageDebitCommitted   Stage = "debit_committed"
)

// Outcome is the terminal state of a transformation request.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeRejectedInput       Outcome = "rejected_input"
	OutcomeRejectedNoAllowance Outcome = "rejected_no_allowance"
	OutcomeUpstreamFailure     Outcome = "upstream_failure"
	OutcomeInternalError       Outcome = "internal_error"
	OutcomeAbandoned           Outcome = "abandoned"
)

// OutcomeFor maps an error kind onto the terminal outcome it produces.
func OutcomeFor(kind ErrorKind) Outcome {
	switch kind {
	case KindInvalidInput:
		return OutcomeRejectedInput
	case KindAllowanceExhausted:
		return OutcomeRejectedNoAllowance
	case KindUpstreamFailure:
		return OutcomeUpstreamFailure
	case KindCanceled:
		return OutcomeAbandoned
	default:
		return OutcomeInternalError
	}
}
