package types

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

const (
	HeaderPartnerID       = "X-Partner-ID"
	HeaderStripeSignature = "Stripe-Signature"
	HeaderMPSignature     = "X-Signature"

	maxWebhookBody = 1 << 20
)

type ProviderWebhookRequest struct {
	Provider  string
	Signature string
	Payload   []byte
}

// NewProviderWebhookRequestFromContext reads the raw body. The signature is taken
// from the header the provider signs with.
func NewProviderWebhookRequestFromContext(ctx echo.Context, provider, signatureHeader string) (*ProviderWebhookRequest, error) {
	payload, err := readBody(ctx)
	if err != nil {
		return nil, err
	}
	return &ProviderWebhookRequest{
		Provider:  strings.ToLower(strings.TrimSpace(provider)),
		Signature: strings.TrimSpace(ctx.Request().Header.Get(signatureHeader)),
		Payload:   payload,
	}, nil
}

func (r *ProviderWebhookRequest) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type ExternalWebhookRequest struct {
	PartnerID string
	Signature string
	Timestamp string
	Payload   []byte
}

func NewExternalWebhookRequestFromContext(ctx echo.Context) (*ExternalWebhookRequest, error) {
	payload, err := readBody(ctx)
	if err != nil {
		return nil, err
	}
	header := ctx.Request().Header
	return &ExternalWebhookRequest{
		PartnerID: strings.TrimSpace(header.Get(HeaderPartnerID)),
		Signature: strings.TrimSpace(header.Get(signature.HeaderSignature)),
		Timestamp: strings.TrimSpace(header.Get(signature.HeaderTimestamp)),
		Payload:   payload,
	}, nil
}

func (r *ExternalWebhookRequest) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

func (r *ExternalWebhookRequest) GetPartnerID() string {
	if r != nil {
		return r.PartnerID
	}
	return ""
}

func (r *ExternalWebhookRequest) GetSignature() string {
	if r != nil {
		return r.Signature
	}
	return ""
}

func (r *ExternalWebhookRequest) GetTimestamp() string {
	if r != nil {
		return r.Timestamp
	}
	return ""
}

func (r *ExternalWebhookRequest) GetPayload() []byte {
	if r != nil {
		return r.Payload
	}
	return nil
}

type TestWebhookRequest struct {
	EventType string                 `json:"event_type" validate:"required"`
	Data      map[string]interface{} `json:"data"`
}

func NewTestWebhookRequestFromContext(ctx echo.Context) (*TestWebhookRequest, error) {
	var body TestWebhookRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.EventType = strings.TrimSpace(body.EventType)
	if body.EventType == "" {
		body.EventType = strings.TrimSpace(ctx.QueryParam("event_type"))
	}
	return &body, nil
}

func (r *TestWebhookRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type ListEventsRequest struct {
	Limit int
}

func NewListEventsRequestFromContext(ctx echo.Context) (*ListEventsRequest, error) {
	req := &ListEventsRequest{Limit: 100}
	if raw := strings.TrimSpace(ctx.QueryParam("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		req.Limit = limit
	}
	return req, nil
}

func (r *ListEventsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	return nil
}

type WebhookAcceptedResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message"`
}

type ProcessedEventResponse struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Provider     string    `json:"provider"`
	PartnersSent int       `json:"partners_sent"`
	PartnersOK   int       `json:"partners_ok"`
	BusDelivered bool      `json:"bus_delivered"`
	Fallback     bool      `json:"fallback"`
	ReceivedAt   time.Time `json:"received_at"`
}

type ListEventsResponse struct {
	Total  int                       `json:"total"`
	Events []*ProcessedEventResponse `json:"events"`
}

func readBody(ctx echo.Context) ([]byte, error) {
	body := ctx.Request().Body
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(body, maxWebhookBody))
}
