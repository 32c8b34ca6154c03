package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"drawtica/internal/domain"
	"drawtica/internal/sqlinline"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubSQL struct {
	rows    map[string]stubRow
	tags    map[string]pgconn.CommandTag
	execErr error
	calls   []string
	args    [][]any
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, query)
	s.args = append(s.args, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return s.tags[query], nil
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, query)
	s.args = append(s.args, args)
	return s.rows[query]
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestAccountRepositoryDebit(t *testing.T) {
	tests := []struct {
		name    string
		row     stubRow
		want    int
		wantErr error
	}{
		{
			name: "positive balance",
			row: stubRow{scan: func(dest ...any) error {
				*dest[0].(*int) = 2
				return nil
			}},
			want: 2,
		},
		{
			name:    "guard matched nothing",
			row:     stubRow{},
			wantErr: domain.ErrInsufficientCredits,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql := &stubSQL{rows: map[string]stubRow{sqlinline.QDebitAccountCredit: tc.row}}
			got, err := NewAccountRepository(sql).DebitCredit(context.Background(), "acc-1")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("remaining = %d, want %d", got, tc.want)
			}
			if sql.args[0][0] != "acc-1" {
				t.Fatalf("unexpected args %#v", sql.args[0])
			}
		})
	}
}

func TestAccountRepositoryCreateMapsUniqueViolation(t *testing.T) {
	sql := &stubSQL{rows: map[string]stubRow{
		sqlinline.QInsertAccount: {scan: func(dest ...any) error {
			return &pgconn.PgError{Code: "23505"}
		}},
	}}
	err := NewAccountRepository(sql).Create(context.Background(), &domain.Account{Email: "dup@example.com"})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountRepositoryCreateFillsGeneratedColumns(t *testing.T) {
	created := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	sql := &stubSQL{rows: map[string]stubRow{
		sqlinline.QInsertAccount: {scan: func(dest ...any) error {
			*dest[0].(*string) = "id-1"
			*dest[1].(*string) = "standard"
			*dest[2].(*time.Time) = created
			*dest[3].(*time.Time) = created
			return nil
		}},
	}}
	a := &domain.Account{Email: " New@Example.com", Credits: 3}
	if err := NewAccountRepository(sql).Create(context.Background(), a); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if a.ID != "id-1" || a.Tier != domain.TierStandard || a.Email != "new@example.com" {
		t.Fatalf("unexpected account %#v", a)
	}
}

func TestAccountRepositoryUpdatesReportMissingRows(t *testing.T) {
	sql := &stubSQL{tags: map[string]pgconn.CommandTag{}}
	repo := NewAccountRepository(sql)
	if err := repo.SetCredits(context.Background(), "missing", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SetCredits err = %v", err)
	}
	if err := repo.ResetPassword(context.Background(), "token", "hash", time.Now()); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("ResetPassword err = %v", err)
	}
	if err := repo.SetCredits(context.Background(), "id", -1); err == nil {
		t.Fatalf("negative credits accepted")
	}
}

func TestAccountRepositoryDowngradeCountsRows(t *testing.T) {
	sql := &stubSQL{tags: map[string]pgconn.CommandTag{
		sqlinline.QDowngradeExpiredTiers: pgconn.NewCommandTag("UPDATE 4"),
	}}
	n, err := NewAccountRepository(sql).DowngradeExpiredTiers(context.Background(), time.Now())
	if err != nil || n != 4 {
		t.Fatalf("DowngradeExpiredTiers() = %d, %v", n, err)
	}
}

func scanTransactionInto(status string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = "tx-1"
		*dest[1].(*string) = "acc-1"
		*dest[2].(*string) = "monthly"
		*dest[3].(*int64) = 2999
		*dest[4].(*string) = "TRY"
		*dest[5].(*int) = 100
		*dest[6].(*string) = status
		*dest[7].(*string) = "ref-1"
		*dest[8].(*time.Time) = time.Now()
		return nil
	}
}

func TestTransactionRepositoryComplete(t *testing.T) {
	tests := []struct {
		name     string
		complete stubRow
		lookup   stubRow
		wantErr  error
	}{
		{name: "pending flips", complete: stubRow{scan: scanTransactionInto("completed")}},
		{name: "replay", complete: stubRow{}, lookup: stubRow{scan: scanTransactionInto("completed")}, wantErr: domain.ErrDuplicateOperation},
		{name: "unknown reference", complete: stubRow{}, lookup: stubRow{}, wantErr: domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql := &stubSQL{rows: map[string]stubRow{
				sqlinline.QCompleteCreditTransaction:          tc.complete,
				sqlinline.QSelectCreditTransactionByReference: tc.lookup,
			}}
			tx, err := NewTransactionRepository(sql).Complete(context.Background(), "ref-1", 1, time.Now())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && tx.Status != domain.TransactionCompleted {
				t.Fatalf("status = %q", tx.Status)
			}
			if !strings.Contains(sql.calls[0], "status = 'pending'") {
				t.Fatalf("first call must be the guarded completion")
			}
		})
	}
}
