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

// TransactionRepositoryPG implements domain.TransactionRepository backed by PostgreSQL.
type TransactionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewTransactionRepository(sql infra.SQLExecutor) *TransactionRepositoryPG {
	return &TransactionRepositoryPG{sql: sql}
}

func (r *TransactionRepositoryPG) CreatePending(ctx context.Context, tx *domain.CreditTransaction) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertCreditTransaction,
		tx.AccountID, tx.PlanID, tx.AmountMinor, tx.Currency, tx.Credits, tx.Reference)
	var status string
	if err := row.Scan(&tx.ID, &status, &tx.CreatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrDuplicateOperation
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	tx.Status = domain.TransactionStatus(status)
	return nil
}

func (r *TransactionRepositoryPG) GetByReference(ctx context.Context, reference string) (*domain.CreditTransaction, error) {
	return scanTransaction(r.sql.QueryRow(ctx, sqlinline.QSelectCreditTransactionByReference, reference))
}

// Complete applies the purchase. When nothing was pending it looks the
// reference up again to tell a replay apart from an unknown reference.
func (r *TransactionRepositoryPG) Complete(ctx context.Context, reference string, tierMonths int, now time.Time) (*domain.CreditTransaction, error) {
	tx, err := scanTransaction(r.sql.QueryRow(ctx, sqlinline.QCompleteCreditTransaction, reference, tierMonths, now))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, lookupErr := r.GetByReference(ctx, reference); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, domain.ErrDuplicateOperation
}

func (r *TransactionRepositoryPG) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QExpirePendingTransactions, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("expire transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var (
		tx     domain.CreditTransaction
		status string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &tx.PlanID, &tx.AmountMinor, &tx.Currency, &tx.Credits,
		&status, &tx.Reference, &tx.CreatedAt, &tx.CompletedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}

var _ domain.TransactionRepository = (*TransactionRepositoryPG)(nil)
