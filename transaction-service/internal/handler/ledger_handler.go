package handler

import (
	"context"
	"net/http"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerCommander defines the balance-changing operations used by LedgerHandler.
type LedgerCommander interface {
	Transfer(context.Context, cqrs.TransferCommand) (*models.Transaction, error)
	Deposit(context.Context, cqrs.FundingCommand) (*models.Transaction, error)
	Withdraw(context.Context, cqrs.FundingCommand) (*models.Transaction, error)
	CancelTransaction(context.Context, cqrs.CancelTransactionCommand) (*models.Transaction, error)
}

type LedgerHandler struct {
	commands LedgerCommander
}

// Amounts are accepted as JSON numbers or strings and are range-checked by
// the ledger itself.
type TransferRequest struct {
	FromAccountID string          `json:"fromAccountId" validate:"required"`
	ToAccountID   string          `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required,len=3"`
}

type FundingRequest struct {
	AccountID string          `json:"accountId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"required,len=3"`
}

type LedgerResponse struct {
	Message     string                  `json:"message"`
	Transaction *models.TransactionView `json:"transaction"`
}

func NewLedgerHandler(commands LedgerCommander) *LedgerHandler {
	return &LedgerHandler{commands: commands}
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}

	txn, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		UserID:        userID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, LedgerResponse{Message: "Transfer completed successfully", Transaction: models.NewTransactionView(txn)})
}

func (h *LedgerHandler) Deposit(c *gin.Context) {
	h.fund(c, h.commands.Deposit, "Deposit completed successfully")
}

func (h *LedgerHandler) Withdraw(c *gin.Context) {
	h.fund(c, h.commands.Withdraw, "Withdrawal completed successfully")
}

func (h *LedgerHandler) fund(c *gin.Context, op func(context.Context, cqrs.FundingCommand) (*models.Transaction, error), message string) {
	userID, _ := middleware.GetUserID(c)

	var req FundingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	txn, err := op(c.Request.Context(), cqrs.FundingCommand{
		UserID:    userID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, LedgerResponse{Message: message, Transaction: models.NewTransactionView(txn)})
}

func (h *LedgerHandler) CancelTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	txn, err := h.commands.CancelTransaction(c.Request.Context(), cqrs.CancelTransactionCommand{
		TransactionID:    c.Param("transactionId"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, LedgerResponse{Message: "Transaction cancelled successfully", Transaction: models.NewTransactionView(txn)})
}
