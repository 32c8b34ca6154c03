package domain

import (
	"context"
	"time"
)

// AccountRepository defines persistence for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, limit int) ([]Account, error)
	// DebitCredit removes one credit only when the balance is positive and
	// returns the new balance. ErrInsufficientCredits otherwise.
	DebitCredit(ctx context.Context, id string) (int, error)
	SetCredits(ctx context.Context, id string, credits int) error
	SetTier(ctx context.Context, id string, tier Tier, expiresAt *time.Time) error
	VerifyEmail(ctx context.Context, token string, now time.Time) (*Account, error)
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error
	DowngradeExpiredTiers(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

// TransactionRepository defines persistence for credit purchases.
type TransactionRepository interface {
	CreatePending(ctx context.Context, tx *CreditTransaction) error
	GetByReference(ctx context.Context, reference string) (*CreditTransaction, error)
	// Complete flips a pending transaction to completed and grants its
	// credits and tier in one step. ErrDuplicateOperation when it is not pending.
	Complete(ctx context.Context, reference string, tierMonths int, now time.Time) (*CreditTransaction, error)
	ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error)
}
