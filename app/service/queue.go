package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/queue"
)

type enqueueRequest interface {
	GetBusinessID() string
	GetBookingID() string
	GetUserID() string
	GetForcePremium() bool
	GetPayload() map[string]interface{}
}

type premiumVerifier interface {
	VerifyPremium(ctx context.Context, userID string) (*PremiumStatus, error)
}

type EnqueueResult struct {
	Entry    queue.Entry
	Position int
	Total    int
}

type PositionResult struct {
	Entry    queue.Entry
	Position int
	Total    int
}

// QueueService keeps one priority queue per business.
type QueueService struct {
	mu      sync.Mutex
	queues  map[string]*queue.PriorityQueue
	premium premiumVerifier
	logger  logrus.FieldLogger
}

func NewQueueService(premium premiumVerifier) *QueueService {
	return &QueueService{
		queues:  make(map[string]*queue.PriorityQueue),
		premium: premium,
		logger:  factory.NewModuleLogger("queue-service"),
	}
}

func (s *QueueService) Enqueue(ctx context.Context, req enqueueRequest) (*EnqueueResult, error) {
	businessID := strings.TrimSpace(req.GetBusinessID())
	bookingID := strings.TrimSpace(req.GetBookingID())
	userID := strings.TrimSpace(req.GetUserID())
	if businessID == "" || bookingID == "" || userID == "" {
		return nil, ErrInvalidRequest
	}
	if _, ok := s.locate(bookingID); ok {
		return nil, ErrAlreadyQueued
	}

	tier := queue.TierNormal
	if req.GetForcePremium() {
		tier = queue.TierPremium
	} else if s.premium != nil {
		status, err := s.premium.VerifyPremium(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Premium lookup failed, using normal tier")
		} else if status.IsPremium {
			tier = queue.TierPremium
		}
	}

	// A booking lives in at most one business queue, so the lookup and the insert
	// happen under the same lock.
	s.mu.Lock()
	if _, ok := s.locateLocked(bookingID); ok {
		s.mu.Unlock()
		return nil, ErrAlreadyQueued
	}
	q := s.queueForLocked(businessID, true)
	position, err := q.Enqueue(queue.Entry{
		Tier:       tier,
		BookingID:  bookingID,
		BusinessID: businessID,
		UserID:     userID,
		Payload:    req.GetPayload(),
	})
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, queue.ErrDuplicateBooking) {
			return nil, ErrAlreadyQueued
		}
		return nil, err
	}
	entry, _ := q.Get(bookingID)
	total := q.Len()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"business_id": businessID,
		"booking_id":  bookingID,
		"tier":        tier.String(),
		"position":    position,
	}).Info("Booking enqueued")
	return &EnqueueResult{Entry: entry, Position: position, Total: total}, nil
}

// Next dequeues the highest priority booking of businessID.
func (s *QueueService) Next(_ context.Context, businessID string) (queue.Entry, error) {
	q := s.queueFor(businessID, false)
	if q == nil {
		return queue.Entry{}, ErrQueueEmpty
	}
	entry, ok := q.Dequeue()
	if !ok {
		return queue.Entry{}, ErrQueueEmpty
	}
	return entry, nil
}

func (s *QueueService) Peek(_ context.Context, businessID string) (queue.Entry, error) {
	q := s.queueFor(businessID, false)
	if q == nil {
		return queue.Entry{}, ErrQueueEmpty
	}
	entry, ok := q.Peek()
	if !ok {
		return queue.Entry{}, ErrQueueEmpty
	}
	return entry, nil
}

// Position looks bookingID up across every business queue.
func (s *QueueService) Position(_ context.Context, bookingID string) (*PositionResult, error) {
	bookingID = strings.TrimSpace(bookingID)
	q, ok := s.locate(bookingID)
	if !ok {
		return nil, ErrQueueEntryNotFound
	}
	entry, ok := q.Get(bookingID)
	if !ok {
		return nil, ErrQueueEntryNotFound
	}
	return &PositionResult{Entry: entry, Position: q.Position(bookingID), Total: q.Len()}, nil
}

func (s *QueueService) Cancel(_ context.Context, bookingID string) error {
	bookingID = strings.TrimSpace(bookingID)
	q, ok := s.locate(bookingID)
	if !ok || !q.Remove(bookingID) {
		return ErrQueueEntryNotFound
	}
	return nil
}

func (s *QueueService) List(_ context.Context, businessID string) []queue.Entry {
	q := s.queueFor(businessID, false)
	if q == nil {
		return []queue.Entry{}
	}
	return q.List()
}

func (s *QueueService) Stats(_ context.Context, businessID string) queue.Stats {
	q := s.queueFor(businessID, false)
	if q == nil {
		return queue.Stats{}
	}
	return q.Stats()
}

func (s *QueueService) Clear(_ context.Context, businessID string) int {
	q := s.queueFor(businessID, false)
	if q == nil {
		return 0
	}
	n := q.Clear()
	s.logger.WithField("business_id", businessID).WithField("cleared", n).Info("Queue cleared")
	return n
}

// Businesses returns the ids of every business with a queue, sorted.
func (s *QueueService) Businesses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *QueueService) queueFor(businessID string, create bool) *queue.PriorityQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueForLocked(strings.TrimSpace(businessID), create)
}

func (s *QueueService) queueForLocked(businessID string, create bool) *queue.PriorityQueue {
	q, ok := s.queues[businessID]
	if !ok && create {
		q = queue.New()
		s.queues[businessID] = q
	}
	return q
}

func (s *QueueService) locate(bookingID string) (*queue.PriorityQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locateLocked(bookingID)
}

// locateLocked must be called with s.mu held.
func (s *QueueService) locateLocked(bookingID string) (*queue.PriorityQueue, bool) {
	for _, q := range s.queues {
		if _, ok := q.Get(bookingID); ok {
			return q, true
		}
	}
	return nil, false
}
