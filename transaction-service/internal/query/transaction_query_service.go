package query

import (
	"context"
	"strings"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/ahmedsenousy01/mini-instapay/transaction-service/internal/repository"
)

type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (*models.TransactionView, error)
	ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, int, error)
}

// Pagination describes the page returned by ListTransactions.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// TransactionPage is one page of a transaction listing.
type TransactionPage struct {
	Transactions []models.TransactionView `json:"transactions"`
	Pagination   Pagination               `json:"pagination"`
}

// TransactionQueryService serves transaction reads. Only transactions touching
// an account the caller owns are ever returned.
type TransactionQueryService struct {
	readRepo TransactionReader
	accounts AccountReader
}

func NewTransactionQueryService(readRepo TransactionReader, accounts AccountReader) *TransactionQueryService {
	return &TransactionQueryService{readRepo: readRepo, accounts: accounts}
}

// GetTransaction answers NotFound, not Forbidden, for foreign transactions so
// ids cannot be enumerated.
func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	view, err := s.readRepo.GetTransaction(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	owned, err := s.ownedAccountIDs(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	for _, id := range owned {
		if view.FromAccountID == id || view.ToAccountID == id {
			return view, nil
		}
	}
	return nil, errs.ErrTransactionNotFound
}

func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*TransactionPage, error) {
	filter, err := parseFilter(q)
	if err != nil {
		return nil, err
	}

	if q.AccountID != "" {
		account, err := s.accounts.GetByID(ctx, q.AccountID)
		if err != nil {
			return nil, err
		}
		if account.UserID != q.UserID {
			return nil, errs.ErrForbidden.WithMessage("you do not own this account")
		}
		filter.AccountIDs = []string{account.ID}
	} else {
		owned, err := s.ownedAccountIDs(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		filter.AccountIDs = owned
	}

	page := q.Page
	if page < 1 {
		page = utils.DefaultPage
	}
	filter.Limit, filter.Offset = utils.Paginate(page, q.Limit)
	page = filter.Offset/filter.Limit + 1

	result := &TransactionPage{
		Transactions: []models.TransactionView{},
		Pagination:   Pagination{Page: page, Limit: filter.Limit},
	}
	if len(filter.AccountIDs) == 0 {
		return result, nil
	}

	views, total, err := s.readRepo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	result.Transactions = views
	result.Pagination.Total = total
	return result, nil
}

func (s *TransactionQueryService) ownedAccountIDs(ctx context.Context, userID string) ([]string, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func parseFilter(q cqrs.ListTransactionsQuery) (repository.TransactionFilter, error) {
	var f repository.TransactionFilter

	switch d := repository.Direction(strings.ToLower(strings.TrimSpace(q.Direction))); d {
	case repository.DirectionAny, repository.DirectionIncoming, repository.DirectionOutgoing:
		f.Direction = d
	default:
		return f, errs.ErrInvalidFilter.WithMessage("type must be incoming or outgoing")
	}

	if s := strings.TrimSpace(q.Status); s != "" {
		status, ok := models.ParseTransactionStatus(strings.ToUpper(s))
		if !ok {
			return f, errs.ErrInvalidFilter.WithMessage("unknown status %q", q.Status)
		}
		f.Status = status
	}

	if k := strings.TrimSpace(q.Kind); k != "" {
		kind, ok := models.ParseTransactionType(strings.ToUpper(k))
		if !ok {
			return f, errs.ErrInvalidFilter.WithMessage("unknown transaction type %q", q.Kind)
		}
		f.Kind = kind
	}

	from, to, err := utils.DateRange(q.FromDate, q.ToDate)
	if err != nil {
		return f, err
	}
	f.From, f.To = from, to
	return f, nil
}
