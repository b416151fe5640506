package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	"github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
)

// TransactionReadRepository serves single transactions from Redis with a
// PostgreSQL fallback and runs filtered listings directly against PostgreSQL.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.TransactionView]
}

func NewTransactionReadRepository(db *sql.DB, redisClient *goredis.Client, ttl time.Duration) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.TransactionView](redisClient, sharedredis.TransactionViewPrefix, ttl),
	}
}

func (r *TransactionReadRepository) GetTransaction(ctx context.Context, id string) (*models.TransactionView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrTransactionNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}

	view := models.NewTransactionView(txn)
	r.cache.Backfill(ctx, view.ID, view)
	return view, nil
}

// ListTransactions returns one page of matching transactions, newest first, and the
// total number of matches.
func (r *TransactionReadRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.TransactionView, int, error) {
	where, args := buildListWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY initiated_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, translateError(err)
		}
		views = append(views, *models.NewTransactionView(txn))
	}
	return views, total, translateError(rows.Err())
}

func buildListWhere(f TransactionFilter) (string, []any) {
	args := []any{pq.Array(f.AccountIDs)}
	var conds []string
	switch f.Direction {
	case DirectionIncoming:
		conds = append(conds, "to_account_id = ANY($1)")
	case DirectionOutgoing:
		conds = append(conds, "from_account_id = ANY($1)")
	default:
		conds = append(conds, "(from_account_id = ANY($1) OR to_account_id = ANY($1))")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("initiated_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("initiated_at <= $%d", len(args)))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// CacheTransactionView refreshes the read model after a committed mutation.
func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	r.cache.Set(ctx, view.ID, view)
}
