package types

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type CreateSubscriptionRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	WithTrial     *bool  `json:"with_trial"`
	PaymentMethod string `json:"payment_method" validate:"max=50"`
}

func NewCreateSubscriptionRequestFromContext(ctx echo.Context) (*CreateSubscriptionRequest, error) {
	var body CreateSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = strings.TrimSpace(body.UserID)
	body.Email = strings.TrimSpace(body.Email)
	body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)
	return &body, nil
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *CreateSubscriptionRequest) GetUserID() string {
	if r != nil {
		return r.UserID
	}
	return ""
}

func (r *CreateSubscriptionRequest) GetEmail() string {
	if r != nil {
		return r.Email
	}
	return ""
}

// GetWithTrial defaults to true when the client did not say.
func (r *CreateSubscriptionRequest) GetWithTrial() bool {
	if r != nil && r.WithTrial != nil {
		return *r.WithTrial
	}
	return true
}

func (r *CreateSubscriptionRequest) GetPaymentMethod() string {
	if r != nil {
		return r.PaymentMethod
	}
	return ""
}

type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Immediate      bool   `json:"immediate"`
	Reason         string `json:"reason" validate:"max=500"`
}

func NewCancelSubscriptionRequestFromContext(ctx echo.Context) (*CancelSubscriptionRequest, error) {
	var body CancelSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SubscriptionID = strings.TrimSpace(body.SubscriptionID)
	body.UserID = strings.TrimSpace(body.UserID)
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *CancelSubscriptionRequest) Validate() error {
	if r.SubscriptionID == "" && r.UserID == "" {
		return errors.New("subscription_id or user_id is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *CancelSubscriptionRequest) GetSubscriptionID() string {
	if r != nil {
		return r.SubscriptionID
	}
	return ""
}

func (r *CancelSubscriptionRequest) GetUserID() string {
	if r != nil {
		return r.UserID
	}
	return ""
}

func (r *CancelSubscriptionRequest) GetImmediate() bool {
	if r != nil {
		return r.Immediate
	}
	return false
}

func (r *CancelSubscriptionRequest) GetReason() string {
	if r != nil {
		return r.Reason
	}
	return ""
}

type SubscriptionIDRequest struct {
	ID string
}

func NewSubscriptionIDRequestFromContext(ctx echo.Context, param string) (*SubscriptionIDRequest, error) {
	return &SubscriptionIDRequest{ID: strings.TrimSpace(ctx.Param(param))}, nil
}

func (r *SubscriptionIDRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

type SubscriptionResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Email              string     `json:"email,omitempty"`
	State              string     `json:"state"`
	MonthlyPrice       string     `json:"monthly_price"`
	BasePrice          string     `json:"base_price"`
	Currency           string     `json:"currency"`
	TrialDaysRemaining int        `json:"trial_days_remaining"`
	NextChargeAt       *time.Time `json:"next_charge_at,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	Benefits           []string   `json:"benefits"`
	ExternalID         string     `json:"external_id,omitempty"`
	PaymentMethod      string     `json:"payment_method,omitempty"`
	AppliedDiscounts   []string   `json:"applied_discounts"`
	CancelReason       string     `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	Message      string                `json:"message,omitempty"`
}

type PremiumStatusResponse struct {
	UserID    string     `json:"user_id"`
	IsPremium bool       `json:"is_premium"`
	Priority  int        `json:"priority"`
	State     string     `json:"state,omitempty"`
	Benefits  []string   `json:"benefits"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type PremiumUsersResponse struct {
	Total int      `json:"total"`
	Users []string `json:"users"`
}

type PlanInfoResponse struct {
	MonthlyPrice string   `json:"monthly_price"`
	Currency     string   `json:"currency"`
	TrialDays    int      `json:"trial_days"`
	Benefits     []string `json:"benefits"`
}
