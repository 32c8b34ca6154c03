package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"drawtica/internal/domain"
)

// MemoryStore keeps accounts and transactions in process. It backs STORE=memory
// and the tests; every mutation holds one mutex so the guards match the SQL ones.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.CreditTransaction
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.CreditTransaction),
		now:          time.Now,
	}
}

// Accounts exposes the store as an AccountRepository.
func (m *MemoryStore) Accounts() domain.AccountRepository { return memoryAccounts{m} }

// Transactions exposes the store as a TransactionRepository.
func (m *MemoryStore) Transactions() domain.TransactionRepository { return memoryTransactions{m} }

type memoryAccounts struct{ m *MemoryStore }

func (r memoryAccounts) Create(ctx context.Context, account *domain.Account) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	email := domain.NormalizeEmail(account.Email)
	for _, a := range m.accounts {
		if a.Email == email {
			return domain.ErrEmailTaken
		}
	}
	now := m.now()
	account.ID = uuid.NewString()
	account.Email = email
	if account.Tier == "" {
		account.Tier = domain.TierStandard
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (r memoryAccounts) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memoryAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	email = domain.NormalizeEmail(email)
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memoryAccounts) List(ctx context.Context, limit int) ([]domain.Account, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memoryAccounts) DebitCredit(ctx context.Context, id string) (int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.Credits <= 0 {
		return 0, domain.ErrInsufficientCredits
	}
	a.Credits--
	a.UpdatedAt = m.now()
	return a.Credits, nil
}

func (r memoryAccounts) SetCredits(ctx context.Context, id string, credits int) error {
	return r.m.update(id, func(a *domain.Account) { a.Credits = credits })
}

func (r memoryAccounts) SetTier(ctx context.Context, id string, tier domain.Tier, expiresAt *time.Time) error {
	return r.m.update(id, func(a *domain.Account) {
		a.Tier = tier
		a.TierExpiresAt = expiresAt
	})
}

func (r memoryAccounts) VerifyEmail(ctx context.Context, token string, now time.Time) (*domain.Account, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if token == "" || a.VerifyToken != token {
			continue
		}
		if a.VerifyExpiresAt == nil || !a.VerifyExpiresAt.After(now) {
			return nil, domain.ErrInvalidToken
		}
		a.EmailVerified = true
		a.VerifyToken = ""
		a.VerifyExpiresAt = nil
		a.UpdatedAt = m.now()
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrInvalidToken
}

func (r memoryAccounts) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.m.update(id, func(a *domain.Account) {
		a.ResetToken = token
		a.ResetExpiresAt = &expiresAt
	})
}

func (r memoryAccounts) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if token == "" || a.ResetToken != token {
			continue
		}
		if a.ResetExpiresAt == nil || !a.ResetExpiresAt.After(now) {
			return domain.ErrInvalidToken
		}
		a.PasswordHash = passwordHash
		a.ResetToken = ""
		a.ResetExpiresAt = nil
		a.UpdatedAt = m.now()
		return nil
	}
	return domain.ErrInvalidToken
}

func (r memoryAccounts) DowngradeExpiredTiers(ctx context.Context, now time.Time) (int64, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.accounts {
		if a.Tier == domain.TierElevated && a.TierExpiresAt != nil && !a.TierExpiresAt.After(now) {
			a.Tier = domain.TierStandard
			a.TierExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (r memoryAccounts) Delete(ctx context.Context, id string) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.accounts, id)
	for ref, tx := range m.transactions {
		if tx.AccountID == id {
			delete(m.transactions, ref)
		}
	}
	return nil
}

func (m *MemoryStore) update(id string, fn func(a *domain.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = m.now()
	return nil
}

type memoryTransactions struct{ m *MemoryStore }

func (r memoryTransactions) CreatePending(ctx context.Context, tx *domain.CreditTransaction) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[tx.AccountID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := m.transactions[tx.Reference]; ok {
		return domain.ErrDuplicateOperation
	}
	tx.ID = uuid.NewString()
	tx.Status = domain.TransactionPending
	tx.CreatedAt = m.now()
	stored := *tx
	m.transactions[tx.Reference] = &stored
	return nil
}

func (r memoryTransactions) GetByReference(ctx context.Context, reference string) (*domain.CreditTransaction, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r memoryTransactions) Complete(ctx context.Context, reference string, tierMonths int, now time.Time) (*domain.CreditTransaction, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if tx.Status != domain.TransactionPending {
		return nil, domain.ErrDuplicateOperation
	}
	a, ok := m.accounts[tx.AccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tx.Status = domain.TransactionCompleted
	completedAt := now
	tx.CompletedAt = &completedAt

	base := now
	if a.TierExpiresAt != nil && a.TierExpiresAt.After(now) {
		base = *a.TierExpiresAt
	}
	expires := base.AddDate(0, tierMonths, 0)
	a.Credits += tx.Credits
	a.Tier = domain.TierElevated
	a.TierExpiresAt = &expires
	a.UpdatedAt = m.now()

	cp := *tx
	return &cp, nil
}

func (r memoryTransactions) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tx := range m.transactions {
		if tx.Status == domain.TransactionPending && tx.CreatedAt.Before(createdBefore) {
			tx.Status = domain.TransactionExpired
			n++
		}
	}
	return n, nil
}

var (
	_ domain.AccountRepository     = memoryAccounts{}
	_ domain.TransactionRepository = memoryTransactions{}
)
