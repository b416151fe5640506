package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PostgresUnitOfWork runs ledger operations in SERIALIZABLE transactions with
// a per-transaction lock_timeout, so a blocked lock surfaces as a retryable
// failure instead of hanging the request.
type PostgresUnitOfWork struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresUnitOfWork(db *sql.DB, lockTimeout time.Duration) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db, lockTimeout: lockTimeout}
}

func (u *PostgresUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) (err error) {
	sqlTx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translateError(err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).Msg("ledger rollback failed")
		}
	}()

	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
		if _, err = sqlTx.ExecContext(ctx, stmt); err != nil {
			return translateError(err)
		}
	}

	if err = fn(ctx, &pgLedgerTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}

type pgLedgerTx struct {
	tx *sql.Tx
}

func (t *pgLedgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	locked := make(map[string]*models.Account, len(ids))
	// One statement per row keeps the acquisition order explicit; a single
	// IN (...) FOR UPDATE does not guarantee it.
	for _, id := range SortedUnique(ids) {
		var a models.Account
		err := t.tx.QueryRowContext(ctx, `
			SELECT id, user_id, currency, balance, created_at
			FROM accounts
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&a.ID, &a.UserID, &a.Currency, &a.Balance, &a.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, translateError(err)
		}
		locked[id] = &a
	}
	return locked, nil
}

func (t *pgLedgerTx) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, accountID, balance)
	if err != nil {
		return translateError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return translateError(err)
	} else if n == 0 {
		return errs.ErrAccountNotFound.WithMessage("account %s not found", accountID)
	}
	return nil
}
