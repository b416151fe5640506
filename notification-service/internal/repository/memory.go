package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/models"
)

// MemoryStore is the in-process notification store.
type MemoryStore struct {
	mu            sync.Mutex
	notifications map[string]models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notifications: make(map[string]models.Notification)}
}

func (s *MemoryStore) Save(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notifications[n.ID]; !exists {
		s.notifications[n.ID] = *n
	}
	return nil
}

func (s *MemoryStore) ListUnsent(_ context.Context, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	var out []models.Notification
	for _, n := range s.notifications {
		if !n.IsSent {
			out = append(out, n)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notifications[id]; ok {
		n.IsSent = true
		n.SentAt = &at
		s.notifications[id] = n
	}
	return nil
}

// Get returns a copy of one notification.
func (s *MemoryStore) Get(id string) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	return n, ok
}
