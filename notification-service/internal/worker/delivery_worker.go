package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/notification-service/internal/mailer"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

const subjectPrefix = "MiniInstaPay Notification: "

const (
	outcomeSent             = "sent"
	outcomeFailed           = "failed"
	outcomeUnknownRecipient = "unknown_recipient"
)

var delivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_delivered_total",
	Help: "Notification delivery attempts by outcome.",
}, []string{"outcome"})

// Outbox is the queue of notifications waiting for delivery.
type Outbox interface {
	ListUnsent(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

// Directory resolves a user id to a user with an email address.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*models.UserView, bool)
}

// RunResult summarises one delivery pass.
type RunResult struct {
	Sent    int
	Failed  int
	Skipped int
}

// DeliveryWorker drains the outbox on a fixed interval. At most one pass
// runs at a time; a pass that would overlap the running one is skipped.
type DeliveryWorker struct {
	outbox    Outbox
	directory Directory
	mailer    mailer.Mailer
	batchSize int
	now       func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewDeliveryWorker(outbox Outbox, directory Directory, m mailer.Mailer, batchSize int) *DeliveryWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DeliveryWorker{
		outbox:    outbox,
		directory: directory,
		mailer:    m,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a pass immediately and then every interval until ctx ends. It
// waits for the pass in flight before returning.
func (w *DeliveryWorker) Start(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("delivery worker started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.wg.Wait()

	w.trigger(ctx)
	for {
		select {
		case <-ticker.C:
			w.trigger(ctx)
		case <-ctx.Done():
			log.Info().Msg("delivery worker stopping")
			return
		}
	}
}

func (w *DeliveryWorker) trigger(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.RunOnce(ctx)
	}()
}

// RunOnce performs one delivery pass. It reports false when another pass was
// already running and nothing was done.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (RunResult, bool) {
	var res RunResult
	if !w.running.CompareAndSwap(false, true) {
		log.Debug().Msg("delivery pass already in progress, skipping")
		return res, false
	}
	defer w.running.Store(false)

	pending, err := w.outbox.ListUnsent(ctx, w.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent notifications")
		return res, true
	}
	if len(pending) == 0 {
		return res, true
	}
	log.Info().Int("count", len(pending)).Msg("processing unsent notifications")

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		switch outcome := w.deliver(ctx, &pending[i]); outcome {
		case outcomeSent:
			res.Sent++
		case outcomeUnknownRecipient:
			res.Skipped++
		default:
			res.Failed++
		}
	}
	log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("skipped", res.Skipped).Msg("delivery pass finished")
	return res, true
}

// deliver leaves the row unsent on any failure so the next pass retries it.
func (w *DeliveryWorker) deliver(ctx context.Context, n *models.Notification) string {
	logger := log.With().Str("notification_id", n.ID).Str("user_id", n.UserID).Logger()

	user, ok := w.directory.Lookup(ctx, n.UserID)
	if !ok || user.Email == "" {
		logger.Warn().Msg("recipient email not found, will retry")
		delivered.WithLabelValues(outcomeUnknownRecipient).Inc()
		return outcomeUnknownRecipient
	}

	if err := w.mailer.Send(ctx, user.Email, subjectPrefix+n.Type, n.Message); err != nil {
		logger.Error().Err(err).Msg("failed to send notification")
		delivered.WithLabelValues(outcomeFailed).Inc()
		return outcomeFailed
	}
	if err := w.outbox.MarkSent(ctx, n.ID, w.now()); err != nil {
		logger.Error().Err(err).Msg("notification sent but not marked, it may be sent again")
		delivered.WithLabelValues(outcomeFailed).Inc()
		return outcomeFailed
	}

	logger.Info().Str("email", user.Email).Msg("notification sent")
	delivered.WithLabelValues(outcomeSent).Inc()
	return outcomeSent
}
