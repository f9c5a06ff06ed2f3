package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

type MemorySubscriptionStore struct {
	mu    sync.RWMutex
	items map[string]*entity.Subscription
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{items: make(map[string]*entity.Subscription)}
}

// Create rejects a second trial or active subscription for the same user. The
// check and the insert share one critical section.
func (s *MemorySubscriptionStore) Create(_ context.Context, sub *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.UserID == sub.UserID && existing.State.Current() {
			return ErrCurrentSubscriptionExists
		}
	}
	s.items[sub.ID] = sub.Clone()
	return nil
}

func (s *MemorySubscriptionStore) Update(_ context.Context, sub *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	if sub.State.Current() {
		for id, existing := range s.items {
			if id != sub.ID && existing.UserID == sub.UserID && existing.State.Current() {
				return ErrCurrentSubscriptionExists
			}
		}
	}
	s.items[sub.ID] = sub.Clone()
	return nil
}

func (s *MemorySubscriptionStore) FindByID(_ context.Context, id string) (*entity.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return sub.Clone(), nil
}

// FindLatestByUser returns the most recently created subscription of userID.
func (s *MemorySubscriptionStore) FindLatestByUser(_ context.Context, userID string) (*entity.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entity.Subscription
	for _, sub := range s.items {
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	return latest.Clone(), nil
}

func (s *MemorySubscriptionStore) List(_ context.Context) ([]*entity.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Subscription, 0, len(s.items))
	for _, sub := range s.items {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
