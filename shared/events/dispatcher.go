package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type envelope struct {
	topic     string
	eventType string
	data      any
}

// Dispatcher publishes events off the request path through a bounded queue.
// When the queue is full or the bus fails the event is logged and dropped,
// so callers never block on the transport.
type Dispatcher struct {
	bus     Bus
	queue   chan envelope
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(bus Bus, size int, timeout time.Duration) *Dispatcher {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		bus:     bus,
		queue:   make(chan envelope, size),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch enqueues an event and reports whether it was accepted.
func (d *Dispatcher) Dispatch(topic, eventType string, data any) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("topic", topic).Str("type", eventType).Msg("dispatcher closed, event dropped")
		return false
	}
	select {
	case d.queue <- envelope{topic: topic, eventType: eventType, data: data}:
		return true
	default:
		log.Warn().Str("topic", topic).Str("type", eventType).Msg("dispatch queue full, event dropped")
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for env := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.bus.Publish(ctx, env.topic, env.eventType, env.data); err != nil {
			log.Warn().Err(err).Str("topic", env.topic).Str("type", env.eventType).Msg("event publish failed, dropped")
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		log.Warn().Int("pending", len(d.queue)).Msg("dispatcher close timed out")
	}
}

// NotificationSink turns ledger side effects into notification.requested
// events on the notification stream.
type NotificationSink struct {
	dispatcher *Dispatcher
}

func NewNotificationSink(d *Dispatcher) *NotificationSink {
	return &NotificationSink{dispatcher: d}
}

func (s *NotificationSink) Notify(_ context.Context, userID, kind, message string) {
	s.dispatcher.Dispatch(NotificationEventsStream, NotificationRequested, NotificationRequestedEvent{
		UserID:  userID,
		Type:    kind,
		Message: message,
	})
}

// AuditSink routes ledger audit records to the audit exchange, keyed by action.
type AuditSink struct {
	dispatcher *Dispatcher
}

func NewAuditSink(d *Dispatcher) *AuditSink {
	return &AuditSink{dispatcher: d}
}

func (s *AuditSink) Record(_ context.Context, event LedgerAuditEvent) {
	s.dispatcher.Dispatch(event.Action, event.Action, event)
}
