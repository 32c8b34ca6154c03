package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"drawtica/internal/domain"
	"drawtica/internal/infra"
	"drawtica/internal/sqlinline"
)

// AccountRepositoryPG implements domain.AccountRepository backed by PostgreSQL.
type AccountRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAccountRepository creates a new AccountRepositoryPG.
func NewAccountRepository(sql infra.SQLExecutor) *AccountRepositoryPG {
	return &AccountRepositoryPG{sql: sql}
}

// Create inserts the account and fills in the generated columns.
func (r *AccountRepositoryPG) Create(ctx context.Context, account *domain.Account) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertAccount,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.Credits,
		account.VerifyToken,
		account.VerifyExpiresAt,
	)
	var tier string
	if err := row.Scan(&account.ID, &tier, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.Email = domain.NormalizeEmail(account.Email)
	account.Tier = domain.Tier(tier)
	return nil
}

func (r *AccountRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QSelectAccountByID, id))
}

func (r *AccountRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QSelectAccountByEmail, domain.NormalizeEmail(email)))
}

func (r *AccountRepositoryPG) List(ctx context.Context, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListAccounts, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DebitCredit runs the guarded decrement. No returned row means the balance
// was already zero.
func (r *AccountRepositoryPG) DebitCredit(ctx context.Context, id string) (int, error) {
	var remaining int
	if err := r.sql.QueryRow(ctx, sqlinline.QDebitAccountCredit, id).Scan(&remaining); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, fmt.Errorf("debit credit: %w", err)
	}
	return remaining, nil
}

func (r *AccountRepositoryPG) SetCredits(ctx context.Context, id string, credits int) error {
	if credits < 0 {
		return fmt.Errorf("credits must not be negative")
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetAccountCredits, id, credits)
	if err != nil {
		return fmt.Errorf("set credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepositoryPG) SetTier(ctx context.Context, id string, tier domain.Tier, expiresAt *time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetAccountTier, id, string(tier), expiresAt)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepositoryPG) VerifyEmail(ctx context.Context, token string, now time.Time) (*domain.Account, error) {
	a, err := scanAccount(r.sql.QueryRow(ctx, sqlinline.QVerifyAccountEmail, token, now))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidToken
	}
	return a, err
}

func (r *AccountRepositoryPG) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetAccountResetToken, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepositoryPG) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QResetAccountPassword, token, passwordHash, now)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidToken
	}
	return nil
}

func (r *AccountRepositoryPG) DowngradeExpiredTiers(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDowngradeExpiredTiers, now)
	if err != nil {
		return 0, fmt.Errorf("downgrade tiers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AccountRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteAccount, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		tier string
	)
	if err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Credits, &tier, &a.TierExpiresAt, &a.EmailVerified,
		&a.VerifyToken, &a.VerifyExpiresAt, &a.ResetToken, &a.ResetExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Tier = domain.Tier(tier)
	return &a, nil
}

var _ domain.AccountRepository = (*AccountRepositoryPG)(nil)
