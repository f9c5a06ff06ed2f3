package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
)

const adoptionDiscountTTL = 90 * 24 * time.Hour

var adoptionDiscountPercentage = decimal.NewFromInt(20)

type discountStore interface {
	Create(ctx context.Context, discount *entity.Discount) error
	Update(ctx context.Context, discount *entity.Discount) error
	FindByID(ctx context.Context, id string) (*entity.Discount, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Discount, error)
	ListPendingByEmail(ctx context.Context, email string) ([]*entity.Discount, error)
	List(ctx context.Context) ([]*entity.Discount, error)
}

type discountSubscriptions interface {
	GetByUser(ctx context.Context, userID string) (*entity.Subscription, error)
	ApplyDiscount(ctx context.Context, subscriptionID string, percentage decimal.Decimal, discountID string) (*entity.Subscription, error)
	UserByEmail(ctx context.Context, email string) (string, error)
}

type GrantResult struct {
	Discount       *entity.Discount
	AlreadyApplied bool
	Pending        bool
	// AppliedToSubscription is true when the discount already lowered a current subscription price.
	AppliedToSubscription bool
}

type ClaimResult struct {
	UserID  string
	Email   string
	Claimed int
	Applied int
}

type KindStats struct {
	Total  int
	Active int
}

type DiscountStats struct {
	Total   int
	Active  int
	Pending int
	Users   int
	ByKind  map[entity.DiscountKind]KindStats
}

type DiscountService struct {
	store         discountStore
	subscriptions discountSubscriptions
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewDiscountService(store discountStore, subscriptions discountSubscriptions) *DiscountService {
	return &DiscountService{
		store:         store,
		subscriptions: subscriptions,
		logger:        factory.NewModuleLogger("discount-service"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GrantAdoptionDiscount creates a 20% adoption discount. Without a known user the
// discount stays pending under the lower-cased email until claimed.
func (s *DiscountService) GrantAdoptionDiscount(ctx context.Context, userID, email, sourceEvent string) (*GrantResult, error) {
	userID = strings.TrimSpace(userID)
	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" && email == "" {
		return nil, ErrInvalidRequest
	}
	if userID == "" {
		found, err := s.subscriptions.UserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		userID = found
	}

	var (
		existing []*entity.Discount
		err      error
	)
	if userID != "" {
		existing, err = s.store.ListByUser(ctx, userID)
	} else {
		existing, err = s.store.ListPendingByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, d := range existing {
		if d.Kind == entity.DiscountAnimalAdoption && d.Usable(now) {
			return &GrantResult{Discount: d, AlreadyApplied: true, Pending: d.Pending()}, nil
		}
	}

	discount := &entity.Discount{
		ID:          "desc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		UserID:      userID,
		Email:       email,
		Kind:        entity.DiscountAnimalAdoption,
		Percentage:  adoptionDiscountPercentage,
		SourceEvent: firstNonEmpty(sourceEvent, string(entity.EventAnimalAdopted)),
		ExpiresAt:   now.Add(adoptionDiscountTTL),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, discount); err != nil {
		return nil, err
	}

	result := &GrantResult{Discount: discount, Pending: discount.Pending()}
	if !result.Pending {
		applied, err := s.applyToCurrent(ctx, discount)
		if err != nil {
			return nil, err
		}
		result.AppliedToSubscription = applied
	}

	s.logger.WithFields(logrus.Fields{
		"discount_id": discount.ID,
		"user_id":     userID,
		"pending":     result.Pending,
	}).Info("Adoption discount granted")
	return result, nil
}

// ForUser lists usable discounts owned by userID. Pending discounts are not visible.
func (s *DiscountService) ForUser(ctx context.Context, userID string) ([]*entity.Discount, error) {
	discounts, err := s.store.ListByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*entity.Discount, 0, len(discounts))
	for _, d := range discounts {
		if d.Usable(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Claim assigns pending discounts of email to userID and applies them to the
// user's current subscription when there is one.
func (s *DiscountService) Claim(ctx context.Context, email, userID string) (*ClaimResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	userID = strings.TrimSpace(userID)
	if email == "" || userID == "" {
		return nil, ErrInvalidRequest
	}

	pending, err := s.store.ListPendingByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{UserID: userID, Email: email}
	for _, d := range pending {
		d.UserID = userID
		d.UpdatedAt = s.now()
		if err := s.store.Update(ctx, d); err != nil {
			return nil, err
		}
		result.Claimed++

		applied, err := s.applyToCurrent(ctx, d)
		if err != nil {
			return nil, err
		}
		if applied {
			result.Applied++
		}
	}
	return result, nil
}

// ApplyOwned claims pending discounts for email and applies every usable
// discount of userID to sub.
func (s *DiscountService) ApplyOwned(ctx context.Context, userID, email string, sub *entity.Subscription) error {
	if email != "" {
		if _, err := s.Claim(ctx, email, userID); err != nil {
			return err
		}
	}

	owned, err := s.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range owned {
		if d.Applied && d.SubscriptionID == sub.ID {
			continue
		}
		if err := s.applyTo(ctx, d, sub.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiscountService) Apply(ctx context.Context, discountID, subscriptionID string) (*entity.Discount, error) {
	discount, err := s.store.FindByID(ctx, strings.TrimSpace(discountID))
	if err != nil {
		return nil, err
	}
	if discount == nil {
		return nil, ErrDiscountNotFound
	}
	if !discount.Usable(s.now()) {
		return nil, ErrInvalidTransition
	}
	if err := s.applyTo(ctx, discount, strings.TrimSpace(subscriptionID)); err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *DiscountService) Stats(ctx context.Context) (*DiscountStats, error) {
	discounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &DiscountStats{ByKind: map[entity.DiscountKind]KindStats{}}
	users := map[string]struct{}{}
	for _, d := range discounts {
		stats.Total++
		kind := stats.ByKind[d.Kind]
		kind.Total++
		if d.Usable(now) {
			stats.Active++
			kind.Active++
		}
		stats.ByKind[d.Kind] = kind
		if d.Pending() {
			stats.Pending++
		} else {
			users[d.UserID] = struct{}{}
		}
	}
	stats.Users = len(users)
	return stats, nil
}

// HandleAdoptionEvent grants an adoption discount for animal.adopted and adoption.completed events.
func (s *DiscountService) HandleAdoptionEvent(ctx context.Context, event *entity.NormalizedEvent) error {
	email := lookupString(event.Data, event.Metadata, "email", "usuario_email", "adoptante_email")
	if event.UserID == "" && email == "" {
		s.logger.WithField("event_id", event.ID).Warn("Adoption event without user or email")
		return nil
	}
	_, err := s.GrantAdoptionDiscount(ctx, event.UserID, email, string(event.Type))
	return err
}

func (s *DiscountService) applyToCurrent(ctx context.Context, discount *entity.Discount) (bool, error) {
	sub, err := s.subscriptions.GetByUser(ctx, discount.UserID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sub.State.Current() {
		return false, nil
	}
	if err := s.applyTo(ctx, discount, sub.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DiscountService) applyTo(ctx context.Context, discount *entity.Discount, subscriptionID string) error {
	if _, err := s.subscriptions.ApplyDiscount(ctx, subscriptionID, discount.Percentage, discount.ID); err != nil {
		return err
	}
	discount.Applied = true
	discount.SubscriptionID = subscriptionID
	discount.UpdatedAt = s.now()
	return s.store.Update(ctx, discount)
}
