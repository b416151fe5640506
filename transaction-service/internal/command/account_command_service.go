package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/money"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type AccountWriter interface {
	Create(ctx context.Context, account *models.Account) error
}

// AccountCommandService opens new zero-balance accounts.
type AccountCommandService struct {
	writeRepo AccountWriter
	views     AccountViewCache
	notifier  Notifier
	auditor   Auditor
}

func NewAccountCommandService(writeRepo AccountWriter, views AccountViewCache, notifier Notifier, auditor Auditor) *AccountCommandService {
	return &AccountCommandService{
		writeRepo: writeRepo,
		views:     views,
		notifier:  notifier,
		auditor:   auditor,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	start := time.Now()
	currency, err := money.NormalizeCurrency(cmd.Currency)
	if err != nil {
		observe("create_account", start, err)
		return nil, err
	}

	account := &models.Account{
		ID:        utils.GenerateID("acc"),
		UserID:    cmd.UserID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.writeRepo.Create(ctx, account); err != nil {
		observe("create_account", start, err)
		log.Error().Err(err).Str("user_id", cmd.UserID).Msg("failed to create account")
		return nil, err
	}
	observe("create_account", start, nil)

	ctx = context.WithoutCancel(ctx)
	s.views.CacheAccountView(ctx, models.NewAccountView(account))
	s.notifier.Notify(ctx, account.UserID, models.NotificationAccountCreated,
		fmt.Sprintf("New %s account created successfully", account.Currency))
	s.auditor.Record(ctx, events.LedgerAuditEvent{
		Action:      events.AuditAccountCreated,
		Operation:   "create_account",
		UserID:      account.UserID,
		ToAccountID: account.ID,
		Amount:      decimal.Zero,
		Currency:    account.Currency,
		Status:      string(models.StatusCompleted),
	})
	log.Info().Str("account_id", account.ID).Str("user_id", account.UserID).Msg("account created")
	return account, nil
}
