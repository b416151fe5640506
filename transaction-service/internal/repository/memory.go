package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/shopspring/decimal"
)

// lockTable hands out one exclusive lock per key. Acquisition honours context
// cancellation so a stuck holder turns into a retryable failure.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (l *lockTable) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, key string) error {
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errs.Retryable(fmt.Errorf("waiting for lock %s: %w", key, ctx.Err()))
	}
}

func (l *lockTable) release(key string) {
	<-l.slot(key)
}

// MemoryStore is a process-local ledger store with the same contract as the
// PostgreSQL one: row locks taken in sorted order, writes buffered and
// applied on commit, nothing applied on error.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	locks        *lockTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		locks:        &lockTable{locks: make(map[string]chan struct{})},
	}
}

func accountLockKey(id string) string     { return "account:" + id }
func transactionLockKey(id string) string { return "transaction:" + id }

func (s *MemoryStore) Run(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx := &memoryTx{
		store:    s,
		held:     make(map[string]struct{}),
		balances: make(map[string]decimal.Decimal),
		updates:  make(map[string]models.Transaction),
	}
	defer tx.releaseAll()

	if err := ctx.Err(); err != nil {
		return errs.Retryable(err)
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *MemoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, balance := range tx.balances {
		a := s.accounts[id]
		a.Balance = balance
		s.accounts[id] = a
	}
	for _, t := range tx.inserts {
		s.transactions[t.ID] = t
	}
	for id, t := range tx.updates {
		s.transactions[id] = t
	}
}

type memoryTx struct {
	store    *MemoryStore
	held     map[string]struct{}
	order    []string
	balances map[string]decimal.Decimal
	inserts  []models.Transaction
	updates  map[string]models.Transaction
}

func (t *memoryTx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *memoryTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
}

func (t *memoryTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	locked := make(map[string]*models.Account, len(ids))
	for _, id := range SortedUnique(ids) {
		if err := t.lock(ctx, accountLockKey(id)); err != nil {
			return nil, err
		}
		t.store.mu.RLock()
		a, ok := t.store.accounts[id]
		t.store.mu.RUnlock()
		if !ok {
			continue
		}
		if b, ok := t.balances[id]; ok {
			a.Balance = b
		}
		locked[id] = &a
	}
	return locked, nil
}

func (t *memoryTx) SetBalance(_ context.Context, accountID string, balance decimal.Decimal) error {
	if _, ok := t.held[accountLockKey(accountID)]; !ok {
		return errs.Database(fmt.Errorf("balance update on unlocked account %s", accountID))
	}
	if balance.IsNegative() {
		return errs.Database(fmt.Errorf("negative balance for account %s", accountID))
	}
	t.balances[accountID] = balance
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, txn *models.Transaction) error {
	t.store.mu.RLock()
	_, exists := t.store.transactions[txn.ID]
	t.store.mu.RUnlock()
	if exists {
		return errs.Database(fmt.Errorf("duplicate transaction id %s", txn.ID))
	}
	t.inserts = append(t.inserts, *txn)
	return nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if err := t.lock(ctx, transactionLockKey(id)); err != nil {
		return nil, err
	}
	if u, ok := t.updates[id]; ok {
		return &u, nil
	}
	t.store.mu.RLock()
	txn, ok := t.store.transactions[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, errs.ErrTransactionNotFound
	}
	return &txn, nil
}

func (t *memoryTx) UpdateTransactionStatus(_ context.Context, txn *models.Transaction) error {
	if _, ok := t.held[transactionLockKey(txn.ID)]; !ok {
		return errs.Database(fmt.Errorf("status update on unlocked transaction %s", txn.ID))
	}
	t.updates[txn.ID] = *txn
	return nil
}

// Create stores a new account. The balance is taken as given.
func (s *MemoryStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return &errs.Error{Kind: errs.KindConflict, Code: "ACCOUNT_EXISTS", Message: "account already exists"}
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.AccountView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, errs.ErrAccountNotFound
	}
	return models.NewAccountView(&a), nil
}

func (s *MemoryStore) ListByUserID(_ context.Context, userID string) ([]models.AccountView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := []models.AccountView{}
	for _, a := range s.accounts {
		if a.UserID == userID {
			views = append(views, *models.NewAccountView(&a))
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views, nil
}

// GetTransaction returns one committed transaction.
func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*models.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, errs.ErrTransactionNotFound
	}
	return models.NewTransactionView(&t), nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, f TransactionFilter) ([]models.TransactionView, int, error) {
	s.mu.RLock()
	matched := []models.TransactionView{}
	for _, t := range s.transactions {
		view := models.NewTransactionView(&t)
		if f.Matches(view) {
			matched = append(matched, *view)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].InitiatedAt.Equal(matched[j].InitiatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].InitiatedAt.After(matched[j].InitiatedAt)
	})

	total := len(matched)
	if f.Offset < 0 || f.Offset >= total {
		return []models.TransactionView{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

// The memory store is its own read model; there is nothing to refresh.
func (s *MemoryStore) CacheAccountView(context.Context, *models.AccountView)         {}
func (s *MemoryStore) CacheTransactionView(context.Context, *models.TransactionView) {}
