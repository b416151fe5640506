package cqrs

import "github.com/shopspring/decimal"

type RegisterUserCommand struct {
	Name     string
	Email    string
	Password string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}

type CreateAccountCommand struct {
	UserID   string
	Currency string
}

// TransferCommand moves Amount from FromAccountID, which UserID must own,
// to ToAccountID.
type TransferCommand struct {
	UserID        string
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Currency      string
}

// FundingCommand drives both deposits and withdrawals on a single owned account.
type FundingCommand struct {
	UserID    string
	AccountID string
	Amount    decimal.Decimal
	Currency  string
}

type CancelTransactionCommand struct {
	TransactionID    string
	RequestingUserID string
}
