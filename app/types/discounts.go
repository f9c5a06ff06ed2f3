package types

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type ClaimDiscountsRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

func NewClaimDiscountsRequestFromContext(ctx echo.Context) (*ClaimDiscountsRequest, error) {
	var body ClaimDiscountsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = strings.TrimSpace(body.UserID)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	return &body, nil
}

func (r *ClaimDiscountsRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type DiscountResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Percentage     string    `json:"percentage"`
	SourceEvent    string    `json:"source_event"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Applied        bool      `json:"applied"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type UserDiscountsResponse struct {
	UserID    string              `json:"user_id"`
	Total     int                 `json:"total"`
	Discounts []*DiscountResponse `json:"discounts"`
}

type ClaimDiscountsResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Claimed int    `json:"claimed"`
	Applied int    `json:"applied"`
}

type DiscountKindStatsResponse struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type DiscountStatsResponse struct {
	Total   int                                   `json:"total"`
	Active  int                                   `json:"active"`
	Pending int                                   `json:"pending"`
	Users   int                                   `json:"users"`
	ByKind  map[string]*DiscountKindStatsResponse `json:"by_kind"`
}
