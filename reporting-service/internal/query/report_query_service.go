package query

import (
	"context"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/reporting-service/internal/report"
	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/money"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var reportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "report_generation_duration_seconds",
	Help:    "Time spent loading and building balance reports.",
	Buckets: prometheus.DefBuckets,
}, []string{"scope", "outcome"})

type SnapshotLoader interface {
	Load(ctx context.Context, scope report.Scope, scopeID string, since time.Time) (*report.Snapshot, error)
}

type ReportQueryService struct {
	snapshots SnapshotLoader
}

func NewReportQueryService(snapshots SnapshotLoader) *ReportQueryService {
	return &ReportQueryService{snapshots: snapshots}
}

// GenerateReport validates q, checks the caller owns the scope and builds
// the report from one consistent snapshot.
func (s *ReportQueryService) GenerateReport(ctx context.Context, q cqrs.ReportQuery) (*report.Report, error) {
	start := time.Now()
	r, err := s.generate(ctx, q)
	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(errs.CodeOf(err))
		log.Warn().Err(err).Str("scope", q.Scope).Str("scope_id", q.ScopeID).Msg("report failed")
	}
	reportDuration.WithLabelValues(q.Scope, outcome).Observe(time.Since(start).Seconds())
	return r, err
}

func (s *ReportQueryService) generate(ctx context.Context, q cqrs.ReportQuery) (*report.Report, error) {
	p, err := parseParams(q)
	if err != nil {
		return nil, err
	}
	if p.Scope == report.ScopeUser && p.ScopeID != q.RequestingUserID {
		return nil, errs.ErrForbidden.WithMessage("you can only report on your own accounts")
	}

	snap, err := s.snapshots.Load(ctx, p.Scope, p.ScopeID, p.Start)
	if err != nil {
		return nil, err
	}

	switch p.Scope {
	case report.ScopeAccount:
		if len(snap.Accounts) == 0 {
			return nil, errs.ErrAccountNotFound.WithMessage("account %s not found", p.ScopeID)
		}
		account := snap.Accounts[0]
		if account.UserID != q.RequestingUserID {
			return nil, errs.ErrForbidden.WithMessage("you do not own this account")
		}
		if p.Currency != "" && p.Currency != account.Currency {
			return nil, errs.ErrCurrencyMismatch.WithMessage("account %s holds %s, not %s", account.ID, account.Currency, p.Currency)
		}
		p.Currency = account.Currency

	case report.ScopeUser:
		if len(snap.Accounts) == 0 {
			return nil, errs.ErrAccountNotFound.WithMessage("no accounts found for user %s", p.ScopeID)
		}
		if p.Currency != "" {
			kept := make([]models.Account, 0, len(snap.Accounts))
			for _, a := range snap.Accounts {
				if a.Currency == p.Currency {
					kept = append(kept, a)
				}
			}
			if len(kept) == 0 {
				return nil, errs.ErrAccountNotFound.WithMessage("no %s accounts found for user %s", p.Currency, p.ScopeID)
			}
			snap.Accounts = kept
		} else {
			p.Currency = snap.Accounts[0].Currency
			for _, a := range snap.Accounts[1:] {
				if a.Currency != p.Currency {
					return nil, errs.Validation("CURRENCY_REQUIRED", "user holds accounts in several currencies; pass a currency filter")
				}
			}
		}
	}

	return report.Build(p, *snap), nil
}

func parseParams(q cqrs.ReportQuery) (report.Params, error) {
	p := report.Params{
		Scope:     report.Scope(q.Scope),
		ScopeID:   q.ScopeID,
		StartDate: strings.TrimSpace(q.StartDate),
		EndDate:   strings.TrimSpace(q.EndDate),
	}
	if p.Scope != report.ScopeAccount && p.Scope != report.ScopeUser {
		return p, errs.Validation("INVALID_SCOPE", "scope must be account or user")
	}
	if p.StartDate == "" || p.EndDate == "" {
		return p, errs.ErrInvalidDateRange.WithMessage("startDate and endDate are required")
	}

	from, to, err := utils.DateRange(p.StartDate, p.EndDate)
	if err != nil {
		return p, err
	}
	p.Start, p.End = *from, *to

	if p.GroupBy, err = report.ParseGroupBy(q.GroupBy); err != nil {
		return p, err
	}
	if strings.TrimSpace(q.Currency) != "" {
		if p.Currency, err = money.NormalizeCurrency(q.Currency); err != nil {
			return p, err
		}
	}
	return p, nil
}
