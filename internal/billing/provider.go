package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"drawtica/internal/domain"
)

// Intent is a started payment the client finishes with the provider.
type Intent struct {
	Reference    string
	ClientSecret string
}

// Confirmation is what the provider reports about a settled payment.
type Confirmation struct {
	Reference   string
	AccountID   string
	PlanID      string
	Credits     int
	AmountMinor int64
	Currency    string
}

// Provider is the payment processor. The transformation pipeline never
// talks to it.
type Provider interface {
	CreateIntent(ctx context.Context, accountID string, plan domain.Plan) (Intent, error)
	ConfirmPayment(ctx context.Context, reference string) (Confirmation, error)
}

// StubProvider hands out placeholder intents. ConfirmPayment fails with
// domain.ErrPaymentUnavailable until MarkPaid is called for the reference,
// which is how development and tests simulate a settled payment.
type StubProvider struct {
	mu      sync.Mutex
	intents map[string]Confirmation
	paid    map[string]bool
}

func NewStubProvider() *StubProvider {
	return &StubProvider{
		intents: make(map[string]Confirmation),
		paid:    make(map[string]bool),
	}
}

func (p *StubProvider) CreateIntent(ctx context.Context, accountID string, plan domain.Plan) (Intent, error) {
	ref := "stub_" + uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[ref] = Confirmation{
		Reference:   ref,
		AccountID:   accountID,
		PlanID:      plan.ID,
		Credits:     plan.Credits,
		AmountMinor: plan.AmountMinor,
		Currency:    plan.Currency,
	}
	return Intent{Reference: ref, ClientSecret: ref + "_secret_placeholder"}, nil
}

func (p *StubProvider) ConfirmPayment(ctx context.Context, reference string) (Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.intents[reference]
	if !ok || !p.paid[reference] {
		return Confirmation{}, domain.ErrPaymentUnavailable
	}
	return c, nil
}

// MarkPaid flags reference as settled. Unknown references are ignored.
func (p *StubProvider) MarkPaid(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.intents[reference]; !ok {
		return false
	}
	p.paid[reference] = true
	return true
}
