package types

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type RegisterPartnerRequest struct {
	Name         string   `json:"name" validate:"required,min=2,max=100"`
	WebhookURL   string   `json:"webhook_url" validate:"required,url"`
	Events       []string `json:"events" validate:"required,min=1,dive,required"`
	Description  string   `json:"description" validate:"max=500"`
	ContactEmail string   `json:"contact_email" validate:"omitempty,email"`
}

func NewRegisterPartnerRequestFromContext(ctx echo.Context) (*RegisterPartnerRequest, error) {
	var body RegisterPartnerRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = strings.TrimSpace(body.Name)
	body.WebhookURL = strings.TrimSpace(body.WebhookURL)
	body.Description = strings.TrimSpace(body.Description)
	body.ContactEmail = strings.TrimSpace(body.ContactEmail)
	for i := range body.Events {
		body.Events[i] = strings.TrimSpace(body.Events[i])
	}
	return &body, nil
}

func (r *RegisterPartnerRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *RegisterPartnerRequest) GetName() string {
	if r != nil {
		return r.Name
	}
	return ""
}

func (r *RegisterPartnerRequest) GetWebhookURL() string {
	if r != nil {
		return r.WebhookURL
	}
	return ""
}

func (r *RegisterPartnerRequest) GetEvents() []string {
	if r != nil {
		return r.Events
	}
	return nil
}

func (r *RegisterPartnerRequest) GetDescription() string {
	if r != nil {
		return r.Description
	}
	return ""
}

func (r *RegisterPartnerRequest) GetContactEmail() string {
	if r != nil {
		return r.ContactEmail
	}
	return ""
}

type UpdatePartnerRequest struct {
	ID           string   `json:"-"`
	Name         *string  `json:"name" validate:"omitempty,min=2,max=100"`
	WebhookURL   *string  `json:"webhook_url" validate:"omitempty,url"`
	Events       []string `json:"events" validate:"omitempty,min=1,dive,required"`
	Active       *bool    `json:"active"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
	ContactEmail *string  `json:"contact_email" validate:"omitempty,email"`
}

func NewUpdatePartnerRequestFromContext(ctx echo.Context) (*UpdatePartnerRequest, error) {
	var body UpdatePartnerRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = strings.TrimSpace(ctx.Param("id"))
	return &body, nil
}

func (r *UpdatePartnerRequest) Validate() error {
	if r.ID == "" {
		return errors.New("partner id is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type NotifyPartnersRequest struct {
	EventType  string                 `json:"-"`
	BusinessID string                 `json:"business_id"`
	Data       map[string]interface{} `json:"data"`
	Metadata   map[string]string      `json:"metadata"`
}

func NewNotifyPartnersRequestFromContext(ctx echo.Context) (*NotifyPartnersRequest, error) {
	var body NotifyPartnersRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.EventType = strings.TrimSpace(ctx.Param("event"))
	body.BusinessID = strings.TrimSpace(body.BusinessID)
	return &body, nil
}

func (r *NotifyPartnersRequest) Validate() error {
	if r.EventType == "" {
		return errors.New("event is required")
	}
	return nil
}

type PartnerResponse struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	WebhookURL           string     `json:"webhook_url"`
	Events               []string   `json:"events"`
	Secret               string     `json:"secret,omitempty"`
	Description          string     `json:"description,omitempty"`
	ContactEmail         string     `json:"contact_email,omitempty"`
	Active               bool       `json:"active"`
	DeliverySuccessCount int64      `json:"delivery_success_count"`
	DeliveryFailureCount int64      `json:"delivery_failure_count"`
	LastDeliveryAt       *time.Time `json:"last_delivery_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type PartnerEnvelopeResponse struct {
	Partner *PartnerResponse `json:"partner"`
	Message string           `json:"message,omitempty"`
}

type ListPartnersResponse struct {
	Total    int                `json:"total"`
	Partners []*PartnerResponse `json:"partners"`
}

type EventDescriptorResponse struct {
	Event       string `json:"event"`
	Description string `json:"description"`
}

type AvailableEventsResponse struct {
	Total  int                        `json:"total"`
	Events []*EventDescriptorResponse `json:"events"`
}

type DeliveryResultResponse struct {
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`
	Success     bool   `json:"success"`
	StatusCode  int    `json:"status_code,omitempty"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

type DispatchSummaryResponse struct {
	EventID   string                    `json:"event_id"`
	EventType string                    `json:"event_type"`
	Total     int                       `json:"total"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Results   []*DeliveryResultResponse `json:"results"`
}
