package domain

import "time"

// TransactionStatus tracks a credit purchase lifecycle.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionExpired   TransactionStatus = "expired"
)

// CreditTransaction is one credit purchase. Credits and tier are applied only
// on the pending to completed transition.
type CreditTransaction struct {
	ID          string
	AccountID   string
	PlanID      string
	AmountMinor int64
	Currency    string
	Credits     int
	Status      TransactionStatus
	Reference   string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
