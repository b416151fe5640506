package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/audit-worker/internal/repository"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var recorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "audit_events_recorded_total",
	Help: "Ledger audit events handled by outcome.",
}, []string{"action", "outcome"})

type AuditWriter interface {
	Save(ctx context.Context, entry *repository.AuditLog) error
}

// AuditCommandService stores ledger audit events consumed from the broker.
type AuditCommandService struct {
	store       AuditWriter
	saveTimeout time.Duration
	now         func() time.Time
}

func NewAuditCommandService(store AuditWriter, saveTimeout time.Duration) *AuditCommandService {
	if saveTimeout <= 0 {
		saveTimeout = 5 * time.Second
	}
	return &AuditCommandService{
		store:       store,
		saveTimeout: saveTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent is the AMQP consumer handler. A returned error requeues the
// message; events that can never be stored are logged and acknowledged.
func (s *AuditCommandService) HandleEvent(ctx context.Context, event events.Event) error {
	var data events.LedgerAuditEvent
	if err := event.Decode(&data); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed audit event")
		recorded.WithLabelValues(event.Type, "dropped").Inc()
		return nil
	}
	entry, err := s.toAuditLog(event, data)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("dropping invalid audit event")
		recorded.WithLabelValues(event.Type, "dropped").Inc()
		return nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()
	if err := s.store.Save(saveCtx, entry); err != nil {
		recorded.WithLabelValues(entry.Action, "failed").Inc()
		return err
	}

	recorded.WithLabelValues(entry.Action, "stored").Inc()
	log.Debug().Str("event_id", event.ID).Str("action", entry.Action).Msg("audit event stored")
	return nil
}

func (s *AuditCommandService) toAuditLog(event events.Event, data events.LedgerAuditEvent) (*repository.AuditLog, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}
	amount, err := bson.ParseDecimal128(data.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("amount %s: %w", data.Amount, err)
	}
	action := data.Action
	if action == "" {
		action = event.Type
	}
	return &repository.AuditLog{
		ID:            event.ID,
		Action:        action,
		Operation:     data.Operation,
		UserID:        data.UserID,
		TransactionID: data.TransactionID,
		FromAccountID: data.FromAccountID,
		ToAccountID:   data.ToAccountID,
		Amount:        amount,
		Currency:      data.Currency,
		Status:        data.Status,
		ErrorCode:     data.ErrorCode,
		OccurredAt:    event.Timestamp,
		RecordedAt:    s.now(),
	}, nil
}
