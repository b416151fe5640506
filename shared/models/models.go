package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTransfer   TransactionType = "TRANSFER"
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// ParseTransactionType reports whether s names a known transaction type.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(s); t {
	case TransactionTransfer, TransactionDeposit, TransactionWithdrawal:
		return t, true
	}
	return "", false
}

// ParseTransactionStatus reports whether s names a known status.
func ParseTransactionStatus(s string) (TransactionStatus, bool) {
	switch st := TransactionStatus(s); st {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return st, true
	}
	return "", false
}

// Notification types emitted by the ledger.
const (
	NotificationAccountCreated       = "ACCOUNT_CREATED"
	NotificationTransactionSent      = "TRANSACTION_SENT"
	NotificationTransactionReceived  = "TRANSACTION_RECEIVED"
	NotificationDepositCompleted     = "DEPOSIT_COMPLETED"
	NotificationWithdrawalCompleted  = "WITHDRAWAL_COMPLETED"
	NotificationTransactionCancelled = "TRANSACTION_CANCELLED"
	NotificationUserRegistered       = "USER_REGISTERED"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Account balance always equals the sum of the signed amounts of the
// COMPLETED transactions touching it.
type Account struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Transaction is one ledger movement. Deposits and withdrawals reference the
// same account on both ends.
type Transaction struct {
	ID            string            `json:"id"`
	FromAccountID string            `json:"fromAccountId"`
	ToAccountID   string            `json:"toAccountId"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	InitiatedAt   time.Time         `json:"initiatedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	CancelledAt   *time.Time        `json:"cancelledAt,omitempty"`
}

// Touches reports whether accountID is either endpoint of t.
func (t *Transaction) Touches(accountID string) bool {
	return t.FromAccountID == accountID || t.ToAccountID == accountID
}

// Notification is a queued user-facing message. IsSent flips once the
// delivery worker has handed it to the mailer.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	IsSent    bool       `json:"isSent"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
}
