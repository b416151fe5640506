package command

import (
	"context"
	"strings"
	"testing"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/transaction-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	store := repository.NewMemoryStore()
	notifier := &recordingNotifier{}
	auditor := &recordingAuditor{}
	svc := NewAccountCommandService(store, store, notifier, auditor)

	account, err := svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{UserID: "usr-1", Currency: " eur "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(account.ID, "acc-"))
	assert.Equal(t, "EUR", account.Currency)
	assert.True(t, account.Balance.IsZero())

	view, err := store.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", view.UserID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationAccountCreated, notifier.sent[0].kind)
	assert.Equal(t, "New EUR account created successfully", notifier.sent[0].message)
	assert.Equal(t, events.AuditAccountCreated, auditor.last().Action)
}

func TestCreateAccountInvalidCurrency(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewAccountCommandService(store, store, &recordingNotifier{}, &recordingAuditor{})

	for _, currency := range []string{"", "EU", "EURO", "12A"} {
		_, err := svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{UserID: "usr-1", Currency: currency})
		assert.ErrorIs(t, err, errs.ErrInvalidCurrency, currency)
	}
	accounts, err := store.ListByUserID(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
