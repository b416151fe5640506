// Package report rebuilds historical balances from the current balance and
// the transaction history that followed. It is pure: callers load a
// consistent Snapshot and Build derives everything else from it.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/shopspring/decimal"
)

type Scope string

const (
	ScopeAccount Scope = "account"
	ScopeUser    Scope = "user"
)

type Dimension string

const (
	ByDay      Dimension = "day"
	ByWeek     Dimension = "week"
	ByMonth    Dimension = "month"
	ByCurrency Dimension = "currency"
	ByAccount  Dimension = "account"
)

// ParseGroupBy splits a comma separated groupBy value. Empty input means no
// grouping; duplicates are ignored.
func ParseGroupBy(raw string) ([]Dimension, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var dims []Dimension
	seen := map[Dimension]bool{}
	var invalid []string
	for _, token := range strings.Split(raw, ",") {
		d := Dimension(strings.ToLower(strings.TrimSpace(token)))
		switch d {
		case ByDay, ByWeek, ByMonth, ByCurrency, ByAccount:
			if !seen[d] {
				seen[d] = true
				dims = append(dims, d)
			}
		default:
			invalid = append(invalid, strings.TrimSpace(token))
		}
	}
	if len(invalid) > 0 {
		return nil, errs.ErrInvalidGroupBy.WithMessage(
			"invalid groupBy options: %s. Valid options are: day, week, month, currency, account", strings.Join(invalid, ", "))
	}
	return dims, nil
}

// Params describes one report request after validation. Start and End are
// the inclusive UTC day bounds of the window.
type Params struct {
	Scope     Scope
	ScopeID   string
	StartDate string
	EndDate   string
	Start     time.Time
	End       time.Time
	Currency  string
	GroupBy   []Dimension
}

// Snapshot is the data a report is computed from. Accounts are the scope's
// accounts with their current balances. Transactions must contain every
// transaction touching those accounts that was initiated or cancelled at or
// after Params.Start.
type Snapshot struct {
	Accounts     []models.Account
	Transactions []models.Transaction
}

type GroupKey struct {
	Day      string `json:"day,omitempty"`
	Week     string `json:"week,omitempty"`
	Month    string `json:"month,omitempty"`
	Currency string `json:"currency,omitempty"`
	Account  string `json:"account,omitempty"`
}

type Group struct {
	Key              GroupKey                 `json:"key"`
	TransactionCount int                      `json:"transactionCount"`
	TotalVolume      decimal.Decimal          `json:"totalVolume"`
	Transactions     []models.TransactionView `json:"transactions"`
}

type Report struct {
	Scope            Scope           `json:"scope"`
	ScopeID          string          `json:"scopeId"`
	StartDate        string          `json:"startDate"`
	EndDate          string          `json:"endDate"`
	Currency         string          `json:"currency"`
	TransactionCount int             `json:"transactionCount"`
	TotalVolume      decimal.Decimal `json:"totalVolume"`
	OpeningBalance   decimal.Decimal `json:"openingBalance"`
	ClosingBalance   decimal.Decimal `json:"closingBalance"`
	AverageBalance   decimal.Decimal `json:"averageBalance"`
	Groups           []Group         `json:"groups,omitempty"`
}

// scopeSet is the set of account ids a report is relative to.
type scopeSet map[string]struct{}

func (s scopeSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// signedAmount is the effect of t on the scope's combined balance. A
// transfer between two accounts of the same scope nets to zero.
func signedAmount(t *models.Transaction, scope scopeSet) decimal.Decimal {
	inFrom, inTo := scope.has(t.FromAccountID), scope.has(t.ToAccountID)
	switch t.Type {
	case models.TransactionTransfer:
		switch {
		case inFrom && inTo:
			return decimal.Zero
		case inFrom:
			return t.Amount.Neg()
		case inTo:
			return t.Amount
		}
	case models.TransactionDeposit:
		if inTo {
			return t.Amount
		}
	case models.TransactionWithdrawal:
		if inFrom {
			return t.Amount.Neg()
		}
	}
	return decimal.Zero
}

// balanceEvent is one change to the scope's balance at a point in time.
type balanceEvent struct {
	at    time.Time
	delta decimal.Decimal
}

// events lists the balance changes t caused. A transaction that completed
// moved money at initiation; a completed transaction later cancelled moved it
// back at cancellation. Pending or failed transactions never moved money.
func events(t *models.Transaction, scope scopeSet) []balanceEvent {
	if t.CompletedAt == nil {
		return nil
	}
	s := signedAmount(t, scope)
	switch t.Status {
	case models.StatusCompleted:
		return []balanceEvent{{at: t.InitiatedAt, delta: s}}
	case models.StatusCancelled:
		out := []balanceEvent{{at: t.InitiatedAt, delta: s}}
		if t.CancelledAt != nil {
			out = append(out, balanceEvent{at: *t.CancelledAt, delta: s.Neg()})
		}
		return out
	}
	return nil
}

func within(at, start, end time.Time) bool {
	return !at.Before(start) && !at.After(end)
}

// Build derives the report for p from snap.
//
// The opening balance is the current balance minus every change at or after
// the window start. The closing balance adds back the changes inside the
// window. The average is the midpoint of the two.
func Build(p Params, snap Snapshot) *Report {
	scope := make(scopeSet, len(snap.Accounts))
	current := decimal.Zero
	for _, a := range snap.Accounts {
		scope[a.ID] = struct{}{}
		current = current.Add(a.Balance)
	}

	sinceStart := decimal.Zero
	inWindow := decimal.Zero
	var matched []windowed
	for i := range snap.Transactions {
		t := &snap.Transactions[i]
		if !scope.has(t.FromAccountID) && !scope.has(t.ToAccountID) {
			continue
		}
		if p.Currency != "" && t.Currency != p.Currency {
			continue
		}

		volume := decimal.Zero
		for _, e := range events(t, scope) {
			if !e.at.Before(p.Start) {
				sinceStart = sinceStart.Add(e.delta)
			}
			if within(e.at, p.Start, p.End) {
				inWindow = inWindow.Add(e.delta)
				volume = volume.Add(e.delta)
			}
		}

		anchor, ok := anchorTime(t, p.Start, p.End)
		if !ok {
			continue
		}
		matched = append(matched, windowed{txn: t, anchor: anchor, volume: volume})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].anchor.Equal(matched[j].anchor) {
			return matched[i].txn.ID < matched[j].txn.ID
		}
		return matched[i].anchor.Before(matched[j].anchor)
	})

	opening := current.Sub(sinceStart)
	closing := opening.Add(inWindow)
	r := &Report{
		Scope:            p.Scope,
		ScopeID:          p.ScopeID,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		Currency:         p.Currency,
		TransactionCount: len(matched),
		TotalVolume:      inWindow,
		OpeningBalance:   opening,
		ClosingBalance:   closing,
		AverageBalance:   opening.Add(closing).Div(decimal.NewFromInt(2)),
	}
	if len(p.GroupBy) > 0 {
		r.Groups = group(p, scope, matched)
	}
	return r
}

type windowed struct {
	txn    *models.Transaction
	anchor time.Time
	volume decimal.Decimal
}

// anchorTime places t inside the window: at its initiation when that falls
// inside, otherwise at its cancellation.
func anchorTime(t *models.Transaction, start, end time.Time) (time.Time, bool) {
	if within(t.InitiatedAt, start, end) {
		return t.InitiatedAt, true
	}
	if t.CancelledAt != nil && within(*t.CancelledAt, start, end) {
		return *t.CancelledAt, true
	}
	return time.Time{}, false
}

func group(p Params, scope scopeSet, matched []windowed) []Group {
	index := map[GroupKey]int{}
	groups := []Group{}
	for _, w := range matched {
		key := groupKey(p, scope, w)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, TotalVolume: decimal.Zero, Transactions: []models.TransactionView{}})
		}
		g := &groups[i]
		g.TransactionCount++
		g.TotalVolume = g.TotalVolume.Add(w.volume)
		g.Transactions = append(g.Transactions, *models.NewTransactionView(w.txn))
	}
	return groups
}

func groupKey(p Params, scope scopeSet, w windowed) GroupKey {
	var key GroupKey
	at := w.anchor.UTC()
	for _, d := range p.GroupBy {
		switch d {
		case ByDay:
			key.Day = at.Format(utils.DateLayout)
		case ByWeek:
			key.Week = WeekStart(at).Format(utils.DateLayout)
		case ByMonth:
			key.Month = at.Format("2006-01")
		case ByCurrency:
			key.Currency = w.txn.Currency
		case ByAccount:
			key.Account = accountKey(p, scope, w.txn)
		}
	}
	return key
}

// accountKey is the counterparty for an account report and the owned
// account for a user report.
func accountKey(p Params, scope scopeSet, t *models.Transaction) string {
	if p.Scope == ScopeAccount {
		if t.FromAccountID == p.ScopeID {
			return t.ToAccountID
		}
		return t.FromAccountID
	}
	if scope.has(t.FromAccountID) {
		return t.FromAccountID
	}
	return t.ToAccountID
}

// WeekStart returns midnight UTC of the Sunday that starts t's week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
