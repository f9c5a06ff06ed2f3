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
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
)

const (
	PriorityPremium = 1
	PriorityNormal  = 5

	billingPeriod = 30 * 24 * time.Hour
)

var premiumBenefits = []string{
	"queue_priority",
	"vip_line",
	"priority_booking",
	"flexible_cancellation",
	"priority_support",
	"advanced_notifications",
	"ad_free",
}

type SubscriptionConfig struct {
	MonthlyPrice decimal.Decimal
	Currency     string
	TrialDays    int
}

type createSubscriptionRequest interface {
	GetUserID() string
	GetEmail() string
	GetWithTrial() bool
	GetPaymentMethod() string
}

type cancelSubscriptionRequest interface {
	GetSubscriptionID() string
	GetUserID() string
	GetImmediate() bool
	GetReason() string
}

type subscriptionStore interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Update(ctx context.Context, sub *entity.Subscription) error
	FindByID(ctx context.Context, id string) (*entity.Subscription, error)
	FindLatestByUser(ctx context.Context, userID string) (*entity.Subscription, error)
	List(ctx context.Context) ([]*entity.Subscription, error)
}

type premiumUpdater interface {
	UpdatePremium(ctx context.Context, userID string, premium bool) error
}

type eventNotifier interface {
	Notify(ctx context.Context, eventType entity.EventType, data map[string]interface{}, metadata map[string]string) DispatchSummary
}

// pendingDiscounts applies unclaimed discounts to freshly created subscriptions.
type pendingDiscounts interface {
	ApplyOwned(ctx context.Context, userID, email string, sub *entity.Subscription) error
}

type PremiumStatus struct {
	UserID    string
	IsPremium bool
	Priority  int
	State     entity.SubscriptionState
	Benefits  []string
	ExpiresAt *time.Time
}

type PlanInfo struct {
	MonthlyPrice decimal.Decimal
	Currency     string
	TrialDays    int
	Benefits     []string
}

type SubscriptionService struct {
	store     subscriptionStore
	gateway   provider.Gateway
	backend   premiumUpdater
	notifier  eventNotifier
	discounts pendingDiscounts
	cfg       SubscriptionConfig
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewSubscriptionService(
	store subscriptionStore,
	gateway provider.Gateway,
	backend premiumUpdater,
	notifier eventNotifier,
	cfg SubscriptionConfig,
) *SubscriptionService {
	if cfg.MonthlyPrice.IsZero() {
		cfg.MonthlyPrice = decimal.RequireFromString("29.99")
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.TrialDays < 0 {
		cfg.TrialDays = 0
	}
	return &SubscriptionService{
		store:    store,
		gateway:  gateway,
		backend:  backend,
		notifier: notifier,
		cfg:      cfg,
		logger:   factory.NewModuleLogger("subscription-service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetDiscounts wires the discount service, which itself depends on subscriptions.
func (s *SubscriptionService) SetDiscounts(discounts pendingDiscounts) {
	s.discounts = discounts
}

func (s *SubscriptionService) Create(ctx context.Context, req createSubscriptionRequest) (*entity.Subscription, error) {
	userID := strings.TrimSpace(req.GetUserID())
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	current, err := s.store.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.State.Current() {
		return nil, ErrSubscriptionAlreadyActive
	}

	now := s.now()
	sub := &entity.Subscription{
		ID:            "sub_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		UserID:        userID,
		Email:         strings.ToLower(strings.TrimSpace(req.GetEmail())),
		MonthlyPrice:  s.cfg.MonthlyPrice,
		BasePrice:     s.cfg.MonthlyPrice,
		Currency:      s.cfg.Currency,
		Benefits:      append([]string(nil), premiumBenefits...),
		PaymentMethod: strings.TrimSpace(req.GetPaymentMethod()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.GetWithTrial() && s.cfg.TrialDays > 0 {
		next := now.AddDate(0, 0, s.cfg.TrialDays)
		sub.State = entity.SubscriptionTrial
		sub.TrialDaysRemaining = s.cfg.TrialDays
		sub.NextChargeAt = &next
	} else {
		result := s.gateway.CreateSubscription(ctx, provider.CreateSubscriptionInput{
			Price:    s.cfg.MonthlyPrice,
			Currency: s.cfg.Currency,
			Interval: "monthly",
			Metadata: map[string]string{"usuario_id": userID, "subscription_id": sub.ID},
		})
		if !result.Success {
			s.logger.WithField("user_id", userID).WithField("error", result.Error).Warn("Gateway rejected subscription")
			return nil, ErrGatewayRejected
		}
		next := now.Add(billingPeriod)
		sub.State = entity.SubscriptionActive
		sub.NextChargeAt = &next
		sub.ExternalID = firstNonEmpty(result.ExternalID, result.TransactionID)
	}

	if err := s.store.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrCurrentSubscriptionExists) {
			return nil, ErrSubscriptionAlreadyActive
		}
		return nil, err
	}

	if s.discounts != nil {
		if err := s.discounts.ApplyOwned(ctx, userID, sub.Email, sub); err != nil {
			s.logger.WithError(err).WithField("subscription_id", sub.ID).Warn("Apply pending discounts failed")
		}
		if refreshed, err := s.store.FindByID(ctx, sub.ID); err == nil && refreshed != nil {
			sub = refreshed
		}
	}

	s.pushPremium(ctx, userID, true)
	s.notify(ctx, entity.EventSubscriptionCreated, sub, nil)
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (*entity.Subscription, error) {
	sub, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// GetByUser returns the latest subscription of userID in any state.
func (s *SubscriptionService) GetByUser(ctx context.Context, userID string) (*entity.Subscription, error) {
	sub, err := s.store.FindLatestByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *SubscriptionService) VerifyPremium(ctx context.Context, userID string) (*PremiumStatus, error) {
	status := &PremiumStatus{UserID: userID, Priority: PriorityNormal}

	sub, err := s.store.FindLatestByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return status, nil
	}

	status.State = sub.State
	if sub.Premium(s.now()) {
		status.IsPremium = true
		status.Priority = PriorityPremium
		status.Benefits = append([]string(nil), sub.Benefits...)
		status.ExpiresAt = sub.NextChargeAt
		if sub.EndsAt != nil {
			status.ExpiresAt = sub.EndsAt
		}
	}
	return status, nil
}

// Cancel ends a subscription identified by id, or by the user's latest subscription.
// An end-of-period cancellation keeps premium benefits until EndsAt.
func (s *SubscriptionService) Cancel(ctx context.Context, req cancelSubscriptionRequest) (*entity.Subscription, error) {
	var (
		sub *entity.Subscription
		err error
	)
	if id := strings.TrimSpace(req.GetSubscriptionID()); id != "" {
		sub, err = s.Get(ctx, id)
	} else if userID := strings.TrimSpace(req.GetUserID()); userID != "" {
		sub, err = s.GetByUser(ctx, userID)
	} else {
		return nil, ErrInvalidRequest
	}
	if err != nil {
		return nil, err
	}
	if !sub.State.CanTransitionTo(entity.SubscriptionCancelled) {
		return nil, ErrInvalidTransition
	}

	immediate := req.GetImmediate()
	if sub.ExternalID != "" {
		result := s.gateway.CancelSubscription(ctx, sub.ExternalID, immediate)
		if !result.Success {
			s.logger.WithField("subscription_id", sub.ID).WithField("error", result.Error).Warn("Gateway cancellation failed")
		}
	}

	now := s.now()
	sub.State = entity.SubscriptionCancelled
	sub.CancelReason = strings.TrimSpace(req.GetReason())
	if immediate || sub.NextChargeAt == nil || !sub.NextChargeAt.After(now) {
		sub.EndsAt = &now
		immediate = true
	} else {
		ends := *sub.NextChargeAt
		sub.EndsAt = &ends
	}
	sub.NextChargeAt = nil
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, mapSubscriptionStoreErr(err)
	}

	if immediate {
		s.pushPremium(ctx, sub.UserID, false)
	}
	s.notify(ctx, entity.EventSubscriptionCancelled, sub, map[string]interface{}{
		"razon":     sub.CancelReason,
		"immediate": immediate,
	})
	return sub, nil
}

func (s *SubscriptionService) Pause(ctx context.Context, id string) (*entity.Subscription, error) {
	sub, err := s.transition(ctx, id, entity.SubscriptionActive, entity.SubscriptionPaused)
	if err != nil {
		return nil, err
	}
	s.pushPremium(ctx, sub.UserID, false)
	return sub, nil
}

func (s *SubscriptionService) Resume(ctx context.Context, id string) (*entity.Subscription, error) {
	sub, err := s.transition(ctx, id, entity.SubscriptionPaused, entity.SubscriptionActive)
	if err != nil {
		return nil, err
	}
	s.pushPremium(ctx, sub.UserID, true)
	return sub, nil
}

// Renew moves the subscription to ACTIVE for another billing period.
func (s *SubscriptionService) Renew(ctx context.Context, id string) (*entity.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renew(ctx, sub)
}

// RenewFromPayment renews the subscription referenced by a payment.success event.
// Events without a subscription reference are ignored.
func (s *SubscriptionService) RenewFromPayment(ctx context.Context, event *entity.NormalizedEvent) error {
	id := lookupString(event.Data, event.Metadata, "subscription_id", "suscripcion_id")
	if id == "" {
		s.logger.WithField("event_id", event.ID).Info("Payment processed locally without subscription reference")
		return nil
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.renew(ctx, sub)
	return err
}

func (s *SubscriptionService) renew(ctx context.Context, sub *entity.Subscription) (*entity.Subscription, error) {
	if sub.State != entity.SubscriptionActive && !sub.State.CanTransitionTo(entity.SubscriptionActive) {
		return nil, ErrInvalidTransition
	}

	wasTrial := sub.State == entity.SubscriptionTrial
	now := s.now()
	next := now.Add(billingPeriod)
	sub.State = entity.SubscriptionActive
	sub.TrialDaysRemaining = 0
	sub.NextChargeAt = &next
	sub.EndsAt = nil
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, mapSubscriptionStoreErr(err)
	}

	if wasTrial {
		s.notify(ctx, entity.EventSubscriptionActivated, sub, nil)
	}
	s.notify(ctx, entity.EventSubscriptionRenewed, sub, map[string]interface{}{
		"proximo_cobro": next.Format(time.RFC3339),
	})
	return sub, nil
}

// ApplyDiscount reduces the monthly price by percentage. Applying the same
// discount twice has no further effect.
func (s *SubscriptionService) ApplyDiscount(ctx context.Context, subscriptionID string, percentage decimal.Decimal, discountID string) (*entity.Subscription, error) {
	if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidRequest
	}

	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.State == entity.SubscriptionCancelled || sub.State == entity.SubscriptionExpired {
		return nil, ErrInvalidTransition
	}
	for _, applied := range sub.AppliedDiscounts {
		if applied == discountID {
			return sub, nil
		}
	}

	sub.MonthlyPrice = DiscountedPrice(sub.MonthlyPrice, percentage)
	sub.AppliedDiscounts = append(sub.AppliedDiscounts, discountID)
	sub.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, mapSubscriptionStoreErr(err)
	}

	s.logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"discount_id":     discountID,
		"monthly_price":   sub.MonthlyPrice.StringFixed(2),
	}).Info("Discount applied to subscription")
	return sub, nil
}

// DiscountedPrice returns price * (1 - percentage/100) rounded to cents.
func DiscountedPrice(price, percentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percentage.Div(decimal.NewFromInt(100)))
	return price.Mul(factor).Round(2)
}

func (s *SubscriptionService) PremiumUsers(ctx context.Context) ([]string, error) {
	subs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seen := map[string]struct{}{}
	users := make([]string, 0)
	for _, sub := range subs {
		if !sub.Premium(now) {
			continue
		}
		if _, ok := seen[sub.UserID]; ok {
			continue
		}
		seen[sub.UserID] = struct{}{}
		users = append(users, sub.UserID)
	}
	return users, nil
}

func (s *SubscriptionService) PlanInfo() PlanInfo {
	return PlanInfo{
		MonthlyPrice: s.cfg.MonthlyPrice,
		Currency:     s.cfg.Currency,
		TrialDays:    s.cfg.TrialDays,
		Benefits:     append([]string(nil), premiumBenefits...),
	}
}

// ChargeDue renews trial and active subscriptions whose next charge is due.
func (s *SubscriptionService) ChargeDue(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		renewed  int
		firstErr error
	)
	for _, sub := range subs {
		if !sub.State.Current() || sub.NextChargeAt == nil || sub.NextChargeAt.After(now) {
			continue
		}
		if _, err := s.renew(ctx, sub); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		renewed++
	}
	return renewed, firstErr
}

// ExpireEnded moves cancelled subscriptions past EndsAt to EXPIRED.
func (s *SubscriptionService) ExpireEnded(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		expired  int
		firstErr error
	)
	for _, sub := range subs {
		if sub.State != entity.SubscriptionCancelled || sub.EndsAt == nil || sub.EndsAt.After(now) {
			continue
		}
		sub.State = entity.SubscriptionExpired
		sub.UpdatedAt = s.now()
		if err := s.store.Update(ctx, sub); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		s.pushPremium(ctx, sub.UserID, false)
		expired++
	}
	return expired, firstErr
}

func (s *SubscriptionService) transition(ctx context.Context, id string, from, to entity.SubscriptionState) (*entity.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.State != from || !sub.State.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	sub.State = to
	if to == entity.SubscriptionActive && (sub.NextChargeAt == nil || !sub.NextChargeAt.After(now)) {
		next := now.Add(billingPeriod)
		sub.NextChargeAt = &next
	}
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, mapSubscriptionStoreErr(err)
	}
	return sub, nil
}

func (s *SubscriptionService) pushPremium(ctx context.Context, userID string, premium bool) {
	if s.backend == nil {
		return
	}
	if err := s.backend.UpdatePremium(ctx, userID, premium); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Push premium status failed")
	}
}

func (s *SubscriptionService) notify(ctx context.Context, eventType entity.EventType, sub *entity.Subscription, extra map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	data := map[string]interface{}{
		"suscripcion_id": sub.ID,
		"usuario_id":     sub.UserID,
		"estado":         string(sub.State),
		"monthly_price":  sub.MonthlyPrice.StringFixed(2),
		"currency":       sub.Currency,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.notifier.Notify(ctx, eventType, data, map[string]string{"source": "subscriptions"})
}

func mapSubscriptionStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		return ErrSubscriptionNotFound
	case errors.Is(err, repository.ErrCurrentSubscriptionExists):
		return ErrSubscriptionAlreadyActive
	default:
		return err
	}
}

// UserByEmail returns the user id of the latest subscription registered with email.
func (s *SubscriptionService) UserByEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	subs, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}

	var latest *entity.Subscription
	for _, sub := range subs {
		if sub.Email != email {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.UserID, nil
}
