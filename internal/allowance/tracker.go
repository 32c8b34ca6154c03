package allowance

import (
	"context"
	"errors"
	"fmt"

	"drawtica/internal/domain"
)

// AnonymousCeiling is the number of free transformations an anonymous
// client may consume. The count is reported by the client itself, so it
// only nudges visitors towards registering and never protects revenue.
const AnonymousCeiling = 3

// Requester identifies who a transformation is billed to. An empty
// AccountID means the request is anonymous and FreeUses is the count the
// client claims to have used so far.
type Requester struct {
	AccountID string
	FreeUses  int
}

// Anonymous reports whether no account is attached.
func (r Requester) Anonymous() bool {
	return r.AccountID == ""
}

// Allowance is the state observed by Check.
type Allowance struct {
	Anonymous bool
	Remaining int
	FreeUses  int
}

// Receipt is the state after a successful Debit.
type Receipt struct {
	Remaining int
	FreeUses  int
}

// Tracker answers whether a requester may transform one more image and
// consumes exactly one unit once the work succeeded.
type Tracker struct {
	accounts domain.AccountRepository
}

// NewTracker returns a tracker backed by the account repository.
func NewTracker(accounts domain.AccountRepository) *Tracker {
	return &Tracker{accounts: accounts}
}

// Check inspects the allowance without changing it. Anonymous requesters at
// the ceiling get ErrAllowanceExhausted; accounts with no credits get
// ErrInsufficientCredits.
func (t *Tracker) Check(ctx context.Context, req Requester) (Allowance, error) {
	if req.Anonymous() {
		used := clampUses(req.FreeUses)
		if used >= AnonymousCeiling {
			return Allowance{Anonymous: true, FreeUses: used}, domain.ErrAllowanceExhausted
		}
		return Allowance{Anonymous: true, Remaining: AnonymousCeiling - used, FreeUses: used}, nil
	}

	account, err := t.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Allowance{}, domain.ErrUnauthorized
		}
		return Allowance{}, fmt.Errorf("load account: %w", err)
	}
	if account.Credits <= 0 {
		return Allowance{}, domain.ErrInsufficientCredits
	}
	return Allowance{Remaining: account.Credits}, nil
}

// Debit consumes one unit. For accounts this is the guarded decrement in the
// repository, so a balance raced down to zero by another request yields
// ErrInsufficientCredits instead of going negative.
func (t *Tracker) Debit(ctx context.Context, req Requester) (Receipt, error) {
	if req.Anonymous() {
		used := clampUses(req.FreeUses) + 1
		remaining := AnonymousCeiling - used
		if remaining < 0 {
			remaining = 0
		}
		return Receipt{Remaining: remaining, FreeUses: used}, nil
	}

	remaining, err := t.accounts.DebitCredit(ctx, req.AccountID)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Remaining: remaining}, nil
}

func clampUses(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
