package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/transaction-service/internal/query"
	"github.com/gin-gonic/gin"
)

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) (*query.TransactionPage, error)
}

type TransactionHandler struct {
	queries TransactionQuerier
}

func NewTransactionHandler(queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{queries: queries}
}

// ListTransactions lists transactions across all of the caller's accounts.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	h.list(c, "")
}

// ListAccountTransactions lists transactions of one owned account.
func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	h.list(c, c.Param("accountId"))
}

func (h *TransactionHandler) list(c *gin.Context, accountID string) {
	userID, _ := middleware.GetUserID(c)

	page, err := intQuery(c, "page")
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	result, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		UserID:    userID,
		AccountID: accountID,
		Direction: c.Query("type"),
		Kind:      c.Query("transactionType"),
		Status:    c.Query("status"),
		FromDate:  c.Query("fromDate"),
		ToDate:    c.Query("toDate"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: c.Param("transactionId"),
		UserID:        userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// intQuery reads an optional positive integer query parameter. Absent
// parameters return 0 so the query layer applies its defaults.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errs.ErrInvalidFilter.WithMessage("%s must be a positive integer", name)
	}
	return n, nil
}
