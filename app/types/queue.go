package types

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type EnqueueRequest struct {
	BusinessID   string                 `json:"business_id" validate:"required"`
	BookingID    string                 `json:"booking_id" validate:"required"`
	UserID       string                 `json:"user_id" validate:"required"`
	ForcePremium bool                   `json:"force_premium"`
	Payload      map[string]interface{} `json:"payload"`
}

func NewEnqueueRequestFromContext(ctx echo.Context) (*EnqueueRequest, error) {
	var body EnqueueRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.BusinessID = strings.TrimSpace(body.BusinessID)
	body.BookingID = strings.TrimSpace(body.BookingID)
	body.UserID = strings.TrimSpace(body.UserID)
	return &body, nil
}

func (r *EnqueueRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *EnqueueRequest) GetBusinessID() string {
	if r != nil {
		return r.BusinessID
	}
	return ""
}

func (r *EnqueueRequest) GetBookingID() string {
	if r != nil {
		return r.BookingID
	}
	return ""
}

func (r *EnqueueRequest) GetUserID() string {
	if r != nil {
		return r.UserID
	}
	return ""
}

func (r *EnqueueRequest) GetForcePremium() bool {
	if r != nil {
		return r.ForcePremium
	}
	return false
}

func (r *EnqueueRequest) GetPayload() map[string]interface{} {
	if r != nil {
		return r.Payload
	}
	return nil
}

// QueueKeyRequest carries the path id of queue routes keyed by business or booking.
type QueueKeyRequest struct {
	ID string
}

func NewQueueKeyRequestFromContext(ctx echo.Context, param string) (*QueueKeyRequest, error) {
	return &QueueKeyRequest{ID: strings.TrimSpace(ctx.Param(param))}, nil
}

func (r *QueueKeyRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

type QueueEntryResponse struct {
	BookingID  string                 `json:"booking_id"`
	BusinessID string                 `json:"business_id"`
	UserID     string                 `json:"user_id"`
	Tier       string                 `json:"tier"`
	Priority   int                    `json:"priority"`
	IsPremium  bool                   `json:"is_premium"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

type EnqueueResponse struct {
	Entry    *QueueEntryResponse `json:"entry"`
	Position int                 `json:"position"`
	Total    int                 `json:"total"`
	Message  string              `json:"message"`
}

type QueueEntryEnvelopeResponse struct {
	Entry *QueueEntryResponse `json:"entry"`
}

type QueuePositionResponse struct {
	Entry    *QueueEntryResponse `json:"entry"`
	Position int                 `json:"position"`
	Total    int                 `json:"total"`
}

type QueueListResponse struct {
	BusinessID string                `json:"business_id"`
	Total      int                   `json:"total"`
	Entries    []*QueueEntryResponse `json:"entries"`
}

type QueueStatsResponse struct {
	BusinessID   string              `json:"business_id"`
	Total        int                 `json:"total"`
	PremiumCount int                 `json:"premium_count"`
	NormalCount  int                 `json:"normal_count"`
	LowCount     int                 `json:"low_count"`
	Next         *QueueEntryResponse `json:"next,omitempty"`
}

type QueueClearedResponse struct {
	BusinessID string `json:"business_id"`
	Cleared    int    `json:"cleared"`
}
