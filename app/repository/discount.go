package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

type MemoryDiscountStore struct {
	mu    sync.RWMutex
	items map[string]*entity.Discount
}

func NewMemoryDiscountStore() *MemoryDiscountStore {
	return &MemoryDiscountStore{items: make(map[string]*entity.Discount)}
}

func (s *MemoryDiscountStore) Create(_ context.Context, discount *entity.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *discount
	cp.Email = strings.ToLower(cp.Email)
	s.items[cp.ID] = &cp
	return nil
}

func (s *MemoryDiscountStore) Update(_ context.Context, discount *entity.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[discount.ID]; !ok {
		return ErrDiscountNotFound
	}
	cp := *discount
	cp.Email = strings.ToLower(cp.Email)
	s.items[cp.ID] = &cp
	return nil
}

func (s *MemoryDiscountStore) FindByID(_ context.Context, id string) (*entity.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	discount, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *discount
	return &cp, nil
}

func (s *MemoryDiscountStore) ListByUser(_ context.Context, userID string) ([]*entity.Discount, error) {
	return s.filter(func(d *entity.Discount) bool { return userID != "" && d.UserID == userID }), nil
}

// ListPendingByEmail returns unclaimed discounts for email, compared case-insensitively.
func (s *MemoryDiscountStore) ListPendingByEmail(_ context.Context, email string) ([]*entity.Discount, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.filter(func(d *entity.Discount) bool { return email != "" && d.Pending() && d.Email == email }), nil
}

func (s *MemoryDiscountStore) List(_ context.Context) ([]*entity.Discount, error) {
	return s.filter(func(*entity.Discount) bool { return true }), nil
}

func (s *MemoryDiscountStore) filter(match func(*entity.Discount) bool) []*entity.Discount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Discount, 0)
	for _, discount := range s.items {
		if match(discount) {
			cp := *discount
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
