package repository

import (
	"context"
	"database/sql"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
)

// AccountWriteRepository creates accounts. Balance changes never go through
// it; they happen only inside a ledger unit of work.
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, currency, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID, account.UserID, account.Currency, account.Balance, account.CreatedAt)
	if isUniqueViolation(err) {
		return &errs.Error{Kind: errs.KindConflict, Code: "ACCOUNT_EXISTS", Message: "account already exists", Err: err}
	}
	return translateError(err)
}
