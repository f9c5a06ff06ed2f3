package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

// MemoryPartnerStore keeps partners in process. Names are unique case-insensitively.
type MemoryPartnerStore struct {
	mu       sync.RWMutex
	partners map[string]*entity.Partner
}

func NewMemoryPartnerStore() *MemoryPartnerStore {
	return &MemoryPartnerStore{partners: make(map[string]*entity.Partner)}
}

func (s *MemoryPartnerStore) Create(_ context.Context, partner *entity.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[partner.ID]; ok {
		return ErrPartnerAlreadyExists
	}
	if s.nameTakenLocked(partner.Name, "") {
		return ErrPartnerAlreadyExists
	}
	s.partners[partner.ID] = partner.Clone()
	return nil
}

func (s *MemoryPartnerStore) Update(_ context.Context, partner *entity.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[partner.ID]; !ok {
		return ErrPartnerNotFound
	}
	if s.nameTakenLocked(partner.Name, partner.ID) {
		return ErrPartnerAlreadyExists
	}
	s.partners[partner.ID] = partner.Clone()
	return nil
}

func (s *MemoryPartnerStore) FindByID(_ context.Context, id string) (*entity.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partner, ok := s.partners[id]
	if !ok {
		return nil, nil
	}
	return partner.Clone(), nil
}

func (s *MemoryPartnerStore) FindByName(_ context.Context, name string) (*entity.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, partner := range s.partners {
		if strings.EqualFold(partner.Name, name) {
			return partner.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryPartnerStore) List(_ context.Context, activeOnly bool) ([]*entity.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Partner, 0, len(s.partners))
	for _, partner := range s.partners {
		if activeOnly && !partner.Active {
			continue
		}
		out = append(out, partner.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryPartnerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[id]; !ok {
		return ErrPartnerNotFound
	}
	delete(s.partners, id)
	return nil
}

// RecordDelivery bumps the outcome counter under the store lock so concurrent
// deliveries never lose increments.
func (s *MemoryPartnerStore) RecordDelivery(_ context.Context, id string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partner, ok := s.partners[id]
	if !ok {
		return ErrPartnerNotFound
	}
	if success {
		partner.DeliverySuccessCount++
	} else {
		partner.DeliveryFailureCount++
	}
	ts := at
	partner.LastDeliveryAt = &ts
	return nil
}

func (s *MemoryPartnerStore) nameTakenLocked(name, exceptID string) bool {
	for id, partner := range s.partners {
		if id != exceptID && strings.EqualFold(partner.Name, name) {
			return true
		}
	}
	return false
}
