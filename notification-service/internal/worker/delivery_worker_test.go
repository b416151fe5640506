package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/notification-service/internal/repository"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	block chan struct{}
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type mapDirectory map[string]*models.UserView

func (d mapDirectory) Lookup(_ context.Context, userID string) (*models.UserView, bool) {
	u, ok := d[userID]
	return u, ok
}

var directory = mapDirectory{
	"usr-1": {ID: "usr-1", Name: "Ada", Email: "ada@example.com"},
	"usr-3": {ID: "usr-3", Name: "No Mail"},
}

func seed(t *testing.T, store *repository.MemoryStore, id, userID string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), &models.Notification{
		ID: id, UserID: userID, Type: models.NotificationTransactionSent, Message: "Sent 40.00 USD to account acc-2", CreatedAt: at,
	}))
}

func TestRunOnceDelivers(t *testing.T) {
	store := repository.NewMemoryStore()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	seed(t, store, "ntf-1", "usr-1", base)
	seed(t, store, "ntf-2", "usr-2", base.Add(time.Second))
	seed(t, store, "ntf-3", "usr-3", base.Add(2*time.Second))

	m := &fakeMailer{}
	w := NewDeliveryWorker(store, directory, m, 10)
	res, ran := w.RunOnce(context.Background())
	require.True(t, ran)
	assert.Equal(t, RunResult{Sent: 1, Skipped: 2}, res)

	require.Len(t, m.sent, 1)
	assert.Equal(t, sentMail{"ada@example.com", "MiniInstaPay Notification: TRANSACTION_SENT", "Sent 40.00 USD to account acc-2"}, m.sent[0])

	n, _ := store.Get("ntf-1")
	assert.True(t, n.IsSent)
	assert.NotNil(t, n.SentAt)
	n, _ = store.Get("ntf-2")
	assert.False(t, n.IsSent, "unknown recipients stay queued")

	res, _ = w.RunOnce(context.Background())
	assert.Equal(t, RunResult{Skipped: 2}, res)
}

func TestRunOnceKeepsFailedSends(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, "ntf-1", "usr-1", time.Now())

	w := NewDeliveryWorker(store, directory, &fakeMailer{err: errors.New("smtp down")}, 10)
	res, _ := w.RunOnce(context.Background())
	assert.Equal(t, RunResult{Failed: 1}, res)

	n, _ := store.Get("ntf-1")
	assert.False(t, n.IsSent)
}

func TestRunOnceIsSingleFlight(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, "ntf-1", "usr-1", time.Now())

	m := &fakeMailer{block: make(chan struct{})}
	w := NewDeliveryWorker(store, directory, m, 10)

	done := make(chan RunResult)
	go func() {
		res, _ := w.RunOnce(context.Background())
		done <- res
	}()
	require.Eventually(t, func() bool { return w.running.Load() }, time.Second, time.Millisecond)

	_, ran := w.RunOnce(context.Background())
	assert.False(t, ran)

	close(m.block)
	assert.Equal(t, RunResult{Sent: 1}, <-done)
	_, ran = w.RunOnce(context.Background())
	assert.True(t, ran)
}

func TestStartStopsWithContext(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, "ntf-1", "usr-1", time.Now())
	m := &fakeMailer{}
	w := NewDeliveryWorker(store, directory, m, 10)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx, time.Hour)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		n, _ := store.Get("ntf-1")
		return n.IsSent
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
