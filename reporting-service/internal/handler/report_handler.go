package handler

import (
	"context"
	"net/http"

	"github.com/ahmedsenousy01/mini-instapay/reporting-service/internal/report"
	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/gin-gonic/gin"
)

type ReportQuerier interface {
	GenerateReport(context.Context, cqrs.ReportQuery) (*report.Report, error)
}

type ReportHandler struct {
	queries ReportQuerier
}

func NewReportHandler(queries ReportQuerier) *ReportHandler {
	return &ReportHandler{queries: queries}
}

func (h *ReportHandler) AccountReport(c *gin.Context) {
	h.generate(c, report.ScopeAccount, c.Param("accountId"))
}

func (h *ReportHandler) UserReport(c *gin.Context) {
	h.generate(c, report.ScopeUser, c.Param("userId"))
}

func (h *ReportHandler) generate(c *gin.Context, scope report.Scope, scopeID string) {
	userID, _ := middleware.GetUserID(c)

	r, err := h.queries.GenerateReport(c.Request.Context(), cqrs.ReportQuery{
		Scope:            string(scope),
		ScopeID:          scopeID,
		StartDate:        c.Query("startDate"),
		EndDate:          c.Query("endDate"),
		GroupBy:          c.Query("groupBy"),
		Currency:         c.Query("currency"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
