package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Redis stream names
const (
	NotificationEventsStream = "notification.events"
	UserEventsStream         = "user.events"
)

// Event types
const (
	NotificationRequested = "notification.requested"
	UserRegistered        = "user.registered"
)

// LedgerExchange is the AMQP topic exchange carrying audit events. Routing
// keys are the audit actions below.
const LedgerExchange = "ledger_events"

const (
	AuditAccountCreated       = "ledger.account.created"
	AuditTransferCompleted    = "ledger.transfer.completed"
	AuditDepositCompleted     = "ledger.deposit.completed"
	AuditWithdrawalCompleted  = "ledger.withdrawal.completed"
	AuditTransactionCancelled = "ledger.transaction.cancelled"
	AuditOperationFailed      = "ledger.operation.failed"
)

// Bus publishes an event on a topic: a Redis stream or an AMQP routing key.
type Bus interface {
	Publish(ctx context.Context, topic, eventType string, data any) error
}

// Event is the envelope written to every transport.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode re-reads the loosely typed Data payload into v.
func (e Event) Decode(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s payload: %w", e.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type NotificationRequestedEvent struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type UserRegisteredEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// LedgerAuditEvent describes one ledger operation outcome, successful or not.
type LedgerAuditEvent struct {
	Action        string          `json:"action"`
	Operation     string          `json:"operation"`
	UserID        string          `json:"userId"`
	TransactionID string          `json:"transactionId,omitempty"`
	FromAccountID string          `json:"fromAccountId,omitempty"`
	ToAccountID   string          `json:"toAccountId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Status        string          `json:"status,omitempty"`
	ErrorCode     string          `json:"errorCode,omitempty"`
}
