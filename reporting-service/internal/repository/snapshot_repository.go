package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/reporting-service/internal/report"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SnapshotRepository reads report inputs from the ledger database. Each load
// runs in one read-only REPEATABLE READ transaction so balances and history
// come from the same snapshot.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Load returns the accounts of the scope and every transaction touching them
// initiated or cancelled at or after since. An account scope whose account
// does not exist yields an empty account list.
func (r *SnapshotRepository) Load(ctx context.Context, scope report.Scope, scopeID string, since time.Time) (*report.Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, translateError(err)
	}
	defer tx.Rollback(ctx)

	accounts, err := loadAccounts(ctx, tx, scope, scopeID)
	if err != nil {
		return nil, err
	}
	snap := &report.Snapshot{Accounts: accounts}
	if len(accounts) == 0 {
		return snap, translateError(tx.Commit(ctx))
	}

	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	snap.Transactions, err = loadTransactions(ctx, tx, ids, since)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateError(err)
	}
	return snap, nil
}

func loadAccounts(ctx context.Context, tx pgx.Tx, scope report.Scope, scopeID string) ([]models.Account, error) {
	column := "id"
	if scope == report.ScopeUser {
		column = "user_id"
	}
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, currency, balance::text, created_at
		FROM accounts
		WHERE %s = $1
		ORDER BY created_at ASC, id ASC
	`, column), scopeID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		var balance string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Currency, &balance, &a.CreatedAt); err != nil {
			return nil, translateError(err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, errs.Database(fmt.Errorf("account %s balance %q: %w", a.ID, balance, err))
		}
		accounts = append(accounts, a)
	}
	return accounts, translateError(rows.Err())
}

func loadTransactions(ctx context.Context, tx pgx.Tx, accountIDs []string, since time.Time) ([]models.Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, from_account_id, to_account_id, amount::text, currency, type, status,
		       initiated_at, completed_at, cancelled_at
		FROM transactions
		WHERE (from_account_id = ANY($1) OR to_account_id = ANY($1))
		  AND (initiated_at >= $2 OR cancelled_at >= $2)
		ORDER BY initiated_at ASC, id ASC
	`, accountIDs, since)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var amount, kind, status string
		if err := rows.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &t.Currency, &kind, &status,
			&t.InitiatedAt, &t.CompletedAt, &t.CancelledAt); err != nil {
			return nil, translateError(err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errs.Database(fmt.Errorf("transaction %s amount %q: %w", t.ID, amount, err))
		}
		t.Type = models.TransactionType(kind)
		t.Status = models.TransactionStatus(status)
		txns = append(txns, t)
	}
	return txns, translateError(rows.Err())
}

// translateError maps snapshot and timeout failures to retryable errors and
// everything else to a database error.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Retryable(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return errs.Retryable(err)
		}
	}
	return errs.Database(err)
}
