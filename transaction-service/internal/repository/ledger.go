package repository

import (
	"context"
	"sort"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/shopspring/decimal"
)

// UnitOfWork runs fn as one atomic, serializable unit. Any error returned by
// fn rolls back every write made through tx.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the locking accessor available inside a unit of work.
type LedgerTx interface {
	// LockAccounts locks the given accounts in ascending id order and returns
	// the ones that exist, keyed by id.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	// LockTransaction locks one transaction row or returns ErrTransactionNotFound.
	LockTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// UpdateTransactionStatus persists Status, CompletedAt and CancelledAt.
	UpdateTransactionStatus(ctx context.Context, t *models.Transaction) error
}

// SortedUnique returns ids deduplicated in ascending order, the global lock
// order for accounts.
func SortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type Direction string

const (
	DirectionAny      Direction = ""
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// TransactionFilter selects transactions touching AccountIDs. Deposits and
// withdrawals match both directions.
type TransactionFilter struct {
	AccountIDs []string
	Direction  Direction
	Status     models.TransactionStatus
	Kind       models.TransactionType
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Matches applies every filter except pagination.
func (f TransactionFilter) Matches(t *models.TransactionView) bool {
	owned := make(map[string]struct{}, len(f.AccountIDs))
	for _, id := range f.AccountIDs {
		owned[id] = struct{}{}
	}
	_, fromOwned := owned[t.FromAccountID]
	_, toOwned := owned[t.ToAccountID]

	switch f.Direction {
	case DirectionIncoming:
		if !toOwned {
			return false
		}
	case DirectionOutgoing:
		if !fromOwned {
			return false
		}
	default:
		if !fromOwned && !toOwned {
			return false
		}
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Kind != "" && t.Type != f.Kind {
		return false
	}
	if f.From != nil && t.InitiatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.InitiatedAt.After(*f.To) {
		return false
	}
	return true
}
