package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
)

// Transaction writes only happen inside a ledger unit of work; these are the
// pgLedgerTx methods touching the transactions table.

func (t *pgLedgerTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, from_account_id, to_account_id, amount, currency, status, type,
			initiated_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		txn.ID, txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.Currency,
		string(txn.Status), string(txn.Type), txn.InitiatedAt,
		nullTime(txn.CompletedAt), nullTime(txn.CancelledAt),
	)
	return translateError(err)
}

func (t *pgLedgerTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrTransactionNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return txn, nil
}

func (t *pgLedgerTx) UpdateTransactionStatus(ctx context.Context, txn *models.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, completed_at = $3, cancelled_at = $4
		WHERE id = $1
	`, txn.ID, string(txn.Status), nullTime(txn.CompletedAt), nullTime(txn.CancelledAt))
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateError(err)
	}
	if n == 0 {
		return errs.ErrTransactionNotFound
	}
	return nil
}

const transactionColumns = `id, from_account_id, to_account_id, amount, currency, status, type,
	initiated_at, completed_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txn                    models.Transaction
		status, kind           string
		completedAt, cancelled sql.NullTime
	)
	if err := row.Scan(
		&txn.ID, &txn.FromAccountID, &txn.ToAccountID, &txn.Amount, &txn.Currency,
		&status, &kind, &txn.InitiatedAt, &completedAt, &cancelled,
	); err != nil {
		return nil, err
	}
	txn.Status = models.TransactionStatus(status)
	txn.Type = models.TransactionType(kind)
	txn.CompletedAt = timePtr(completedAt)
	txn.CancelledAt = timePtr(cancelled)
	return &txn, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
