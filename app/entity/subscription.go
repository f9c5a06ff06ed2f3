package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionState string

const (
	SubscriptionTrial     SubscriptionState = "trial"
	SubscriptionActive    SubscriptionState = "active"
	SubscriptionPaused    SubscriptionState = "paused"
	SubscriptionCancelled SubscriptionState = "cancelled"
	SubscriptionExpired   SubscriptionState = "expired"
)

var subscriptionTransitions = map[SubscriptionState][]SubscriptionState{
	SubscriptionTrial:  {SubscriptionActive, SubscriptionCancelled, SubscriptionExpired},
	SubscriptionActive: {SubscriptionActive, SubscriptionPaused, SubscriptionCancelled, SubscriptionExpired},
	SubscriptionPaused: {SubscriptionActive, SubscriptionCancelled},
	// End-of-period cancellations expire once the paid period is over.
	SubscriptionCancelled: {SubscriptionExpired},
}

func (s SubscriptionState) CanTransitionTo(next SubscriptionState) bool {
	for _, allowed := range subscriptionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Current reports whether the state blocks the creation of another subscription.
func (s SubscriptionState) Current() bool {
	return s == SubscriptionTrial || s == SubscriptionActive
}

type Subscription struct {
	ID                 string
	UserID             string
	Email              string
	State              SubscriptionState
	MonthlyPrice       decimal.Decimal
	BasePrice          decimal.Decimal
	Currency           string
	TrialDaysRemaining int
	NextChargeAt       *time.Time
	EndsAt             *time.Time
	Benefits           []string
	ExternalID         string
	PaymentMethod      string
	AppliedDiscounts   []string
	CancelReason       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Premium reports whether the subscription grants premium benefits at now.
func (s *Subscription) Premium(now time.Time) bool {
	switch s.State {
	case SubscriptionTrial, SubscriptionActive:
		return true
	case SubscriptionCancelled:
		return s.EndsAt != nil && now.Before(*s.EndsAt)
	default:
		return false
	}
}

func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	out := *s
	out.Benefits = append([]string(nil), s.Benefits...)
	out.AppliedDiscounts = append([]string(nil), s.AppliedDiscounts...)
	if s.NextChargeAt != nil {
		t := *s.NextChargeAt
		out.NextChargeAt = &t
	}
	if s.EndsAt != nil {
		t := *s.EndsAt
		out.EndsAt = &t
	}
	return &out
}
