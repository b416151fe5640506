package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/money"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/ahmedsenousy01/mini-instapay/transaction-service/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Notifier receives fire-and-forget user notifications. It must not block.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, message string)
}

// Auditor receives fire-and-forget audit records. It must not block.
type Auditor interface {
	Record(ctx context.Context, event events.LedgerAuditEvent)
}

type AccountViewCache interface {
	CacheAccountView(ctx context.Context, view *models.AccountView)
}

type TransactionViewCache interface {
	CacheTransactionView(ctx context.Context, view *models.TransactionView)
}

// LedgerCommandService executes every balance-changing operation as one
// serializable unit of work. Side effects (read model refresh, notifications,
// audit) run only after the unit commits and can never undo it.
type LedgerCommandService struct {
	uow            repository.UnitOfWork
	accountViews   AccountViewCache
	txViews        TransactionViewCache
	notifier       Notifier
	auditor        Auditor
	reversalWindow time.Duration
	now            func() time.Time
}

func NewLedgerCommandService(
	uow repository.UnitOfWork,
	accountViews AccountViewCache,
	txViews TransactionViewCache,
	notifier Notifier,
	auditor Auditor,
	reversalWindow time.Duration,
) *LedgerCommandService {
	return &LedgerCommandService{
		uow:            uow,
		accountViews:   accountViews,
		txViews:        txViews,
		notifier:       notifier,
		auditor:        auditor,
		reversalWindow: reversalWindow,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type notification struct {
	userID, kind, message string
}

// committed is what a successful unit hands to the post-commit side effects.
type committed struct {
	txn           *models.Transaction
	accounts      []*models.Account
	notifications []notification
	action        string
	userID        string
}

func (s *LedgerCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*models.Transaction, error) {
	start := time.Now()
	result, err := s.transfer(ctx, cmd)
	observe("transfer", start, err)
	if err != nil {
		s.recordFailure(ctx, "transfer", cmd.UserID, cmd.FromAccountID, cmd.ToAccountID, cmd.Amount, cmd.Currency, err)
		return nil, err
	}
	s.afterCommit(ctx, result)
	return result.txn, nil
}

func (s *LedgerCommandService) transfer(ctx context.Context, cmd cqrs.TransferCommand) (*committed, error) {
	if cmd.FromAccountID == cmd.ToAccountID {
		return nil, errs.ErrSameAccount
	}
	if err := money.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	currency, err := money.NormalizeCurrency(cmd.Currency)
	if err != nil {
		return nil, err
	}

	var result *committed
	err = s.uow.Run(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, cmd.FromAccountID, cmd.ToAccountID)
		if err != nil {
			return err
		}
		from, ok := locked[cmd.FromAccountID]
		if !ok {
			return errs.ErrAccountNotFound.WithMessage("source account %s not found", cmd.FromAccountID)
		}
		to, ok := locked[cmd.ToAccountID]
		if !ok {
			return errs.ErrAccountNotFound.WithMessage("destination account %s not found", cmd.ToAccountID)
		}
		if from.UserID != cmd.UserID {
			return errs.ErrForbidden.WithMessage("you do not own the source account")
		}
		if from.Currency != currency || to.Currency != currency {
			return errs.ErrCurrencyMismatch.WithMessage("transfer currency %s does not match accounts (%s -> %s)", currency, from.Currency, to.Currency)
		}
		if from.Balance.LessThan(cmd.Amount) {
			return errs.ErrInsufficientFunds
		}

		from.Balance = from.Balance.Sub(cmd.Amount)
		to.Balance = to.Balance.Add(cmd.Amount)
		if err := tx.SetBalance(ctx, from.ID, from.Balance); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, to.ID, to.Balance); err != nil {
			return err
		}

		txn := s.completedTransaction(models.TransactionTransfer, from.ID, to.ID, cmd.Amount, currency)
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		amount := cmd.Amount.String()
		result = &committed{
			txn:      txn,
			accounts: []*models.Account{from, to},
			notifications: []notification{
				{from.UserID, models.NotificationTransactionSent, fmt.Sprintf("Sent %s %s to account %s", amount, currency, to.ID)},
				{to.UserID, models.NotificationTransactionReceived, fmt.Sprintf("Received %s %s from account %s", amount, currency, from.ID)},
			},
			action: events.AuditTransferCompleted,
			userID: cmd.UserID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LedgerCommandService) Deposit(ctx context.Context, cmd cqrs.FundingCommand) (*models.Transaction, error) {
	return s.fund(ctx, "deposit", models.TransactionDeposit, cmd)
}

func (s *LedgerCommandService) Withdraw(ctx context.Context, cmd cqrs.FundingCommand) (*models.Transaction, error) {
	return s.fund(ctx, "withdraw", models.TransactionWithdrawal, cmd)
}

func (s *LedgerCommandService) fund(ctx context.Context, op string, kind models.TransactionType, cmd cqrs.FundingCommand) (*models.Transaction, error) {
	start := time.Now()
	result, err := s.applyFunding(ctx, kind, cmd)
	observe(op, start, err)
	if err != nil {
		s.recordFailure(ctx, op, cmd.UserID, cmd.AccountID, cmd.AccountID, cmd.Amount, cmd.Currency, err)
		return nil, err
	}
	s.afterCommit(ctx, result)
	return result.txn, nil
}

// applyFunding records a self-referential DEPOSIT or WITHDRAWAL. No external
// settlement happens here.
func (s *LedgerCommandService) applyFunding(ctx context.Context, kind models.TransactionType, cmd cqrs.FundingCommand) (*committed, error) {
	if err := money.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	currency, err := money.NormalizeCurrency(cmd.Currency)
	if err != nil {
		return nil, err
	}

	var result *committed
	err = s.uow.Run(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		account, ok := locked[cmd.AccountID]
		if !ok {
			return errs.ErrAccountNotFound.WithMessage("account %s not found", cmd.AccountID)
		}
		if account.UserID != cmd.UserID {
			return errs.ErrForbidden.WithMessage("you do not own this account")
		}
		if account.Currency != currency {
			return errs.ErrCurrencyMismatch.WithMessage("currency %s does not match account currency %s", currency, account.Currency)
		}

		var n notification
		amount := cmd.Amount.String()
		switch kind {
		case models.TransactionDeposit:
			account.Balance = account.Balance.Add(cmd.Amount)
			n = notification{account.UserID, models.NotificationDepositCompleted, fmt.Sprintf("Deposited %s %s to account %s", amount, currency, account.ID)}
		case models.TransactionWithdrawal:
			if account.Balance.LessThan(cmd.Amount) {
				return errs.ErrInsufficientFunds
			}
			account.Balance = account.Balance.Sub(cmd.Amount)
			n = notification{account.UserID, models.NotificationWithdrawalCompleted, fmt.Sprintf("Withdrawn %s %s from account %s", amount, currency, account.ID)}
		default:
			return errs.Validation("INVALID_TYPE", "unsupported funding type %s", kind)
		}

		if err := tx.SetBalance(ctx, account.ID, account.Balance); err != nil {
			return err
		}
		txn := s.completedTransaction(kind, account.ID, account.ID, cmd.Amount, currency)
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		action := events.AuditDepositCompleted
		if kind == models.TransactionWithdrawal {
			action = events.AuditWithdrawalCompleted
		}
		result = &committed{
			txn:           txn,
			accounts:      []*models.Account{account},
			notifications: []notification{n},
			action:        action,
			userID:        cmd.UserID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelTransaction cancels a PENDING transaction, or reverses a COMPLETED
// transfer still inside the reversal window. Everything else is
// NotCancellable.
func (s *LedgerCommandService) CancelTransaction(ctx context.Context, cmd cqrs.CancelTransactionCommand) (*models.Transaction, error) {
	start := time.Now()
	result, err := s.cancel(ctx, cmd)
	observe("cancel", start, err)
	if err != nil {
		s.recordFailure(ctx, "cancel", cmd.RequestingUserID, "", "", decimal.Zero, "", err)
		return nil, err
	}
	s.afterCommit(ctx, result)
	return result.txn, nil
}

func (s *LedgerCommandService) cancel(ctx context.Context, cmd cqrs.CancelTransactionCommand) (*committed, error) {
	var result *committed
	err := s.uow.Run(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		txn, err := tx.LockTransaction(ctx, cmd.TransactionID)
		if err != nil {
			return err
		}
		locked, err := tx.LockAccounts(ctx, txn.FromAccountID, txn.ToAccountID)
		if err != nil {
			return err
		}
		from, fromOK := locked[txn.FromAccountID]
		to, toOK := locked[txn.ToAccountID]
		if !fromOK || from.UserID != cmd.RequestingUserID {
			return errs.ErrForbidden.WithMessage("only the sender can cancel this transaction")
		}
		if !toOK {
			return errs.Database(fmt.Errorf("transaction %s references missing account %s", txn.ID, txn.ToAccountID))
		}

		now := s.now()
		reverse, err := s.cancellation(txn, now)
		if err != nil {
			return err
		}

		touched := []*models.Account{}
		if reverse {
			if to.Balance.LessThan(txn.Amount) {
				return errs.ErrInsufficientReversalFunds
			}
			to.Balance = to.Balance.Sub(txn.Amount)
			from.Balance = from.Balance.Add(txn.Amount)
			if err := tx.SetBalance(ctx, to.ID, to.Balance); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, from.ID, from.Balance); err != nil {
				return err
			}
			touched = append(touched, from, to)
		}

		txn.Status = models.StatusCancelled
		txn.CancelledAt = &now
		if err := tx.UpdateTransactionStatus(ctx, txn); err != nil {
			return err
		}

		amount := txn.Amount.String()
		result = &committed{
			txn:      txn,
			accounts: touched,
			notifications: []notification{
				{from.UserID, models.NotificationTransactionCancelled, fmt.Sprintf("Transaction %s of %s %s to account %s was cancelled", txn.ID, amount, txn.Currency, to.ID)},
				{to.UserID, models.NotificationTransactionCancelled, fmt.Sprintf("Transaction %s of %s %s from account %s was cancelled", txn.ID, amount, txn.Currency, from.ID)},
			},
			action: events.AuditTransactionCancelled,
			userID: cmd.RequestingUserID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// cancellation decides whether txn may be cancelled at now and whether
// cancelling it has to move money back.
func (s *LedgerCommandService) cancellation(txn *models.Transaction, now time.Time) (reverse bool, err error) {
	switch txn.Status {
	case models.StatusPending:
		return false, nil
	case models.StatusCompleted:
		if txn.Type != models.TransactionTransfer {
			return false, errs.ErrNotCancellable.WithMessage("%s transactions cannot be cancelled", txn.Type)
		}
		if s.reversalWindow <= 0 {
			return false, errs.ErrNotCancellable.WithMessage("only pending transactions can be cancelled")
		}
		completedAt := txn.InitiatedAt
		if txn.CompletedAt != nil {
			completedAt = *txn.CompletedAt
		}
		if now.Sub(completedAt) > s.reversalWindow {
			return false, errs.ErrNotCancellable.WithMessage("the %s reversal window has passed", s.reversalWindow)
		}
		return true, nil
	default:
		return false, errs.ErrNotCancellable.WithMessage("transaction is already %s", txn.Status)
	}
}

func (s *LedgerCommandService) completedTransaction(kind models.TransactionType, from, to string, amount decimal.Decimal, currency string) *models.Transaction {
	now := s.now()
	return &models.Transaction{
		ID:            utils.GenerateID("txn"),
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      currency,
		Type:          kind,
		Status:        models.StatusCompleted,
		InitiatedAt:   now,
		CompletedAt:   &now,
	}
}

func (s *LedgerCommandService) afterCommit(ctx context.Context, c *committed) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range c.accounts {
		s.accountViews.CacheAccountView(ctx, models.NewAccountView(a))
	}
	s.txViews.CacheTransactionView(ctx, models.NewTransactionView(c.txn))
	for _, n := range c.notifications {
		s.notifier.Notify(ctx, n.userID, n.kind, n.message)
	}
	s.auditor.Record(ctx, events.LedgerAuditEvent{
		Action:        c.action,
		Operation:     string(c.txn.Type),
		UserID:        c.userID,
		TransactionID: c.txn.ID,
		FromAccountID: c.txn.FromAccountID,
		ToAccountID:   c.txn.ToAccountID,
		Amount:        c.txn.Amount,
		Currency:      c.txn.Currency,
		Status:        string(c.txn.Status),
	})
	log.Info().
		Str("action", c.action).
		Str("transaction_id", c.txn.ID).
		Str("user_id", c.userID).
		Msg("ledger operation committed")
}

func (s *LedgerCommandService) recordFailure(ctx context.Context, op, userID, from, to string, amount decimal.Decimal, currency string, err error) {
	code := errs.CodeOf(err)
	event := log.Warn()
	if kind := errs.KindOf(err); kind == errs.KindDatabase {
		event = log.Error()
	}
	event.Err(err).Str("operation", op).Str("code", code).Str("user_id", userID).Msg("ledger operation failed")

	if errors.Is(err, context.Canceled) {
		return
	}
	s.auditor.Record(context.WithoutCancel(ctx), events.LedgerAuditEvent{
		Action:        events.AuditOperationFailed,
		Operation:     op,
		UserID:        userID,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      currency,
		Status:        string(models.StatusFailed),
		ErrorCode:     code,
	})
}
