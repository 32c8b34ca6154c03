package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"drawtica/internal/domain"
	"drawtica/internal/infra"
)

// PendingTTL is how long an unpaid intent stays completable.
const PendingTTL = 24 * time.Hour

// Service records purchases and applies them exactly once.
type Service struct {
	provider     Provider
	transactions domain.TransactionRepository
	logger       *infra.Logger
	now          func() time.Time
}

func NewService(provider Provider, transactions domain.TransactionRepository, logger *infra.Logger) *Service {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{provider: provider, transactions: transactions, logger: logger, now: time.Now}
}

// CreateIntent starts a purchase of planID and stores it as pending.
func (s *Service) CreateIntent(ctx context.Context, accountID, planID string) (Intent, *domain.CreditTransaction, error) {
	plan, err := domain.PlanByID(planID)
	if err != nil {
		return Intent{}, nil, err
	}
	intent, err := s.provider.CreateIntent(ctx, accountID, plan)
	if err != nil {
		return Intent{}, nil, fmt.Errorf("create intent: %w", err)
	}
	tx := &domain.CreditTransaction{
		AccountID:   accountID,
		PlanID:      plan.ID,
		AmountMinor: plan.AmountMinor,
		Currency:    plan.Currency,
		Credits:     plan.Credits,
		Reference:   intent.Reference,
	}
	if err := s.transactions.CreatePending(ctx, tx); err != nil {
		return Intent{}, nil, fmt.Errorf("store pending transaction: %w", err)
	}
	s.logger.Info().
		Str("account_id", accountID).
		Str("plan", plan.ID).
		Str("reference", intent.Reference).
		Msg("billing: intent created")
	return intent, tx, nil
}

// Complete confirms reference with the provider and applies its credits and
// tier. A reference that was already applied yields
// domain.ErrDuplicateOperation and changes nothing.
func (s *Service) Complete(ctx context.Context, reference string) (*domain.CreditTransaction, error) {
	tx, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case domain.TransactionCompleted:
		return tx, domain.ErrDuplicateOperation
	case domain.TransactionExpired:
		return tx, domain.ErrTransactionExpired
	}

	conf, err := s.provider.ConfirmPayment(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	if conf.AccountID != tx.AccountID || conf.PlanID != tx.PlanID || conf.AmountMinor != tx.AmountMinor || conf.Currency != tx.Currency {
		s.logger.Error().
			Str("reference", reference).
			Str("account_id", tx.AccountID).
			Int64("amount_minor", conf.AmountMinor).
			Msg("billing: confirmation does not match transaction")
		return nil, domain.ErrPaymentMismatch
	}

	plan, err := domain.PlanByID(tx.PlanID)
	if err != nil {
		return nil, err
	}
	completed, err := s.transactions.Complete(ctx, reference, plan.TierMonths, s.now())
	if errors.Is(err, domain.ErrDuplicateOperation) {
		return tx, err
	}
	if err != nil {
		return nil, fmt.Errorf("complete transaction: %w", err)
	}
	s.logger.Info().
		Str("reference", reference).
		Str("account_id", completed.AccountID).
		Int("credits", completed.Credits).
		Msg("billing: payment applied")
	return completed, nil
}

// ExpireStale marks intents older than PendingTTL as expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.transactions.ExpirePending(ctx, s.now().Add(-PendingTTL))
}
