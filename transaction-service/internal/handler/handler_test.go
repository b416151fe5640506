package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/transaction-service/internal/query"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ---- mock implementations ----

type mockAccountCommander struct {
	createFn func(cqrs.CreateAccountCommand) (*models.Account, error)
}

func (m *mockAccountCommander) CreateAccount(_ context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockAccountQuerier struct {
	getFn  func(cqrs.GetAccountQuery) (*models.AccountView, error)
	listFn func(cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

func (m *mockAccountQuerier) GetAccount(_ context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountQuerier) ListAccounts(_ context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

type mockLedgerCommander struct {
	transferFn func(cqrs.TransferCommand) (*models.Transaction, error)
	depositFn  func(cqrs.FundingCommand) (*models.Transaction, error)
	withdrawFn func(cqrs.FundingCommand) (*models.Transaction, error)
	cancelFn   func(cqrs.CancelTransactionCommand) (*models.Transaction, error)
}

func (m *mockLedgerCommander) Transfer(_ context.Context, cmd cqrs.TransferCommand) (*models.Transaction, error) {
	if m.transferFn != nil {
		return m.transferFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedgerCommander) Deposit(_ context.Context, cmd cqrs.FundingCommand) (*models.Transaction, error) {
	if m.depositFn != nil {
		return m.depositFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedgerCommander) Withdraw(_ context.Context, cmd cqrs.FundingCommand) (*models.Transaction, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedgerCommander) CancelTransaction(_ context.Context, cmd cqrs.CancelTransactionCommand) (*models.Transaction, error) {
	if m.cancelFn != nil {
		return m.cancelFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockTransactionQuerier struct {
	getFn  func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
	listFn func(cqrs.ListTransactionsQuery) (*query.TransactionPage, error)
}

func (m *mockTransactionQuerier) GetTransaction(_ context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionQuerier) ListTransactions(_ context.Context, q cqrs.ListTransactionsQuery) (*query.TransactionPage, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	}
}

func newTestRouter(accCmds AccountCommander, accQrys AccountQuerier, ledger LedgerCommander, txQrys TransactionQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth("usr-001"))

	accounts := NewAccountHandler(accCmds, accQrys)
	ledgerHandler := NewLedgerHandler(ledger)
	transactions := NewTransactionHandler(txQrys)

	v1 := r.Group("/v1")
	v1.POST("/accounts", accounts.CreateAccount)
	v1.GET("/accounts", accounts.ListAccounts)
	v1.GET("/accounts/:accountId", accounts.GetAccount)
	v1.GET("/accounts/:accountId/transactions", transactions.ListAccountTransactions)
	v1.POST("/transfers", ledgerHandler.Transfer)
	v1.POST("/funding/deposit", ledgerHandler.Deposit)
	v1.POST("/funding/withdraw", ledgerHandler.Withdraw)
	v1.GET("/transactions", transactions.ListTransactions)
	v1.GET("/transactions/:transactionId", transactions.GetTransaction)
	v1.POST("/transactions/:transactionId/cancel", ledgerHandler.CancelTransaction)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

var testAccount = &models.Account{ID: "acc-001", UserID: "usr-001", Currency: "USD", Balance: decimal.Zero, CreatedAt: now}

var testTransaction = &models.Transaction{
	ID: "txn-001", FromAccountID: "acc-001", ToAccountID: "acc-002",
	Amount: decimal.NewFromInt(40), Currency: "USD",
	Type: models.TransactionTransfer, Status: models.StatusCompleted,
	InitiatedAt: now, CompletedAt: &now,
}

func transferBody() map[string]any {
	return map[string]any{"fromAccountId": "acc-001", "toAccountId": "acc-002", "amount": "40.00", "currency": "USD"}
}

// ---- tests ----

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		createFn       func(cqrs.CreateAccountCommand) (*models.Account, error)
		expectedStatus int
	}{
		{
			name:           "success - open a USD account",
			body:           map[string]any{"currency": "usd"},
			createFn:       func(cmd cqrs.CreateAccountCommand) (*models.Account, error) { return testAccount, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing currency",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - currency not three letters",
			body:           map[string]any{"currency": "US1"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "server error - store failure",
			body:           map[string]any{"currency": "USD"},
			createFn:       func(cmd cqrs.CreateAccountCommand) (*models.Account, error) { return nil, fmt.Errorf("connection reset") },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{createFn: tt.createFn}, &mockAccountQuerier{}, &mockLedgerCommander{}, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/accounts", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	tests := []struct {
		name           string
		accountID      string
		getFn          func(cqrs.GetAccountQuery) (*models.AccountView, error)
		expectedStatus int
	}{
		{
			name:           "success - fetch own account",
			accountID:      "acc-001",
			getFn:          func(q cqrs.GetAccountQuery) (*models.AccountView, error) { return models.NewAccountView(testAccount), nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "forbidden - another user's account",
			accountID:      "acc-999",
			getFn:          func(q cqrs.GetAccountQuery) (*models.AccountView, error) { return nil, errs.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "not found - account does not exist",
			accountID:      "acc-000",
			getFn:          func(q cqrs.GetAccountQuery) (*models.AccountView, error) { return nil, errs.ErrAccountNotFound },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{getFn: tt.getFn}, &mockLedgerCommander{}, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodGet, "/v1/accounts/"+tt.accountID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListAccounts(t *testing.T) {
	var gotUser string
	qrys := &mockAccountQuerier{listFn: func(q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
		gotUser = q.UserID
		return []models.AccountView{*models.NewAccountView(testAccount)}, nil
	}}
	router := newTestRouter(&mockAccountCommander{}, qrys, &mockLedgerCommander{}, &mockTransactionQuerier{})
	w := doRequest(router, http.MethodGet, "/v1/accounts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d; body: %s", w.Code, w.Body.String())
	}
	if gotUser != "usr-001" {
		t.Errorf("expected accounts of usr-001, listed %q", gotUser)
	}
	var resp ListAccountsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Accounts) != 1 {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		transferFn     func(cqrs.TransferCommand) (*models.Transaction, error)
		expectedStatus int
	}{
		{
			name: "success - transfer between accounts",
			body: transferBody(),
			transferFn: func(cmd cqrs.TransferCommand) (*models.Transaction, error) {
				if !cmd.Amount.Equal(decimal.NewFromInt(40)) || cmd.UserID != "usr-001" {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return testTransaction, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing destination",
			body:           map[string]any{"fromAccountId": "acc-001", "amount": 1, "currency": "USD"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - amount is not a number",
			body:           map[string]any{"fromAccountId": "acc-001", "toAccountId": "acc-002", "amount": "forty", "currency": "USD"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - same account",
			body:           transferBody(),
			transferFn:     func(cmd cqrs.TransferCommand) (*models.Transaction, error) { return nil, errs.ErrSameAccount },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unprocessable entity - insufficient funds",
			body:           transferBody(),
			transferFn:     func(cmd cqrs.TransferCommand) (*models.Transaction, error) { return nil, errs.ErrInsufficientFunds },
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "forbidden - source owned by someone else",
			body:           transferBody(),
			transferFn:     func(cmd cqrs.TransferCommand) (*models.Transaction, error) { return nil, errs.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "not found - destination missing",
			body:           transferBody(),
			transferFn:     func(cmd cqrs.TransferCommand) (*models.Transaction, error) { return nil, errs.ErrAccountNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "service unavailable - lock timeout",
			body:           transferBody(),
			transferFn:     func(cmd cqrs.TransferCommand) (*models.Transaction, error) { return nil, errs.Retryable(context.DeadlineExceeded) },
			expectedStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockLedgerCommander{transferFn: tt.transferFn}, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/transfers", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestTransferResponseBody(t *testing.T) {
	ledger := &mockLedgerCommander{transferFn: func(cqrs.TransferCommand) (*models.Transaction, error) { return testTransaction, nil }}
	router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, ledger, &mockTransactionQuerier{})
	w := doRequest(router, http.MethodPost, "/v1/transfers", transferBody())

	var resp LedgerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body %s: %v", w.Body.String(), err)
	}
	if resp.Message != "Transfer completed successfully" || resp.Transaction == nil || resp.Transaction.ID != "txn-001" {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if !resp.Transaction.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected amount 40 got %s", resp.Transaction.Amount)
	}
}

func TestFunding(t *testing.T) {
	ok := func(cmd cqrs.FundingCommand) (*models.Transaction, error) { return testTransaction, nil }
	tests := []struct {
		name           string
		url            string
		body           any
		ledger         *mockLedgerCommander
		expectedStatus int
	}{
		{"success - deposit", "/v1/funding/deposit", map[string]any{"accountId": "acc-001", "amount": 25, "currency": "USD"}, &mockLedgerCommander{depositFn: ok}, http.StatusCreated},
		{"success - withdraw", "/v1/funding/withdraw", map[string]any{"accountId": "acc-001", "amount": 25, "currency": "USD"}, &mockLedgerCommander{withdrawFn: ok}, http.StatusCreated},
		{"bad request - missing account", "/v1/funding/deposit", map[string]any{"amount": 25, "currency": "USD"}, &mockLedgerCommander{}, http.StatusBadRequest},
		{
			"unprocessable entity - withdraw more than balance", "/v1/funding/withdraw",
			map[string]any{"accountId": "acc-001", "amount": 150, "currency": "USD"},
			&mockLedgerCommander{withdrawFn: func(cqrs.FundingCommand) (*models.Transaction, error) { return nil, errs.ErrInsufficientFunds }},
			http.StatusUnprocessableEntity,
		},
		{
			"bad request - currency mismatch", "/v1/funding/deposit",
			map[string]any{"accountId": "acc-001", "amount": 1, "currency": "EUR"},
			&mockLedgerCommander{depositFn: func(cqrs.FundingCommand) (*models.Transaction, error) { return nil, errs.ErrCurrencyMismatch }},
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, tt.ledger, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodPost, tt.url, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCancelTransaction(t *testing.T) {
	tests := []struct {
		name           string
		cancelFn       func(cqrs.CancelTransactionCommand) (*models.Transaction, error)
		expectedStatus int
	}{
		{"success - reversal", func(cqrs.CancelTransactionCommand) (*models.Transaction, error) { return testTransaction, nil }, http.StatusOK},
		{"conflict - not cancellable", func(cqrs.CancelTransactionCommand) (*models.Transaction, error) { return nil, errs.ErrNotCancellable }, http.StatusConflict},
		{"unprocessable entity - funds already spent", func(cqrs.CancelTransactionCommand) (*models.Transaction, error) {
			return nil, errs.ErrInsufficientReversalFunds
		}, http.StatusUnprocessableEntity},
		{"not found - unknown transaction", func(cqrs.CancelTransactionCommand) (*models.Transaction, error) { return nil, errs.ErrTransactionNotFound }, http.StatusNotFound},
		{"forbidden - recipient cancelling", func(cqrs.CancelTransactionCommand) (*models.Transaction, error) { return nil, errs.ErrForbidden }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockLedgerCommander{cancelFn: tt.cancelFn}, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/transactions/txn-001/cancel", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	var got cqrs.ListTransactionsQuery
	listFn := func(q cqrs.ListTransactionsQuery) (*query.TransactionPage, error) {
		got = q
		return &query.TransactionPage{
			Transactions: []models.TransactionView{*models.NewTransactionView(testTransaction)},
			Pagination:   query.Pagination{Total: 1, Page: 1, Limit: 10},
		}, nil
	}

	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListTransactionsQuery) (*query.TransactionPage, error)
		expectedStatus int
	}{
		{"success - all accounts with filters", "/v1/transactions?type=incoming&status=COMPLETED&fromDate=2024-01-01&toDate=2024-01-31&page=2&limit=5", listFn, http.StatusOK},
		{"success - single account", "/v1/accounts/acc-001/transactions", listFn, http.StatusOK},
		{"bad request - page is not a number", "/v1/transactions?page=two", listFn, http.StatusBadRequest},
		{"bad request - invalid date range", "/v1/transactions?fromDate=2024-02-01&toDate=2024-01-01", func(cqrs.ListTransactionsQuery) (*query.TransactionPage, error) {
			return nil, errs.ErrInvalidDateRange
		}, http.StatusBadRequest},
		{"forbidden - foreign account", "/v1/accounts/acc-999/transactions", func(cqrs.ListTransactionsQuery) (*query.TransactionPage, error) {
			return nil, errs.ErrForbidden
		}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockLedgerCommander{}, &mockTransactionQuerier{listFn: tt.listFn})
			w := doRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockLedgerCommander{}, &mockTransactionQuerier{listFn: listFn})
	doRequest(router, http.MethodGet, "/v1/transactions?type=outgoing&transactionType=DEPOSIT&page=3&limit=20", nil)
	want := cqrs.ListTransactionsQuery{UserID: "usr-001", Direction: "outgoing", Kind: "DEPOSIT", Page: 3, Limit: 20}
	if got != want {
		t.Errorf("expected query %+v got %+v", want, got)
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		getFn          func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
		expectedStatus int
	}{
		{"success - own transaction", func(cqrs.GetTransactionQuery) (*models.TransactionView, error) {
			return models.NewTransactionView(testTransaction), nil
		}, http.StatusOK},
		{"not found - foreign or missing", func(cqrs.GetTransactionQuery) (*models.TransactionView, error) {
			return nil, errs.ErrTransactionNotFound
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockLedgerCommander{}, &mockTransactionQuerier{getFn: tt.getFn})
			w := doRequest(router, http.MethodGet, "/v1/transactions/txn-001", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
