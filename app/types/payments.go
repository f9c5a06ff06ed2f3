package types

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type CreatePaymentRequest struct {
	Gateway     string            `json:"gateway"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	Description string            `json:"description" validate:"max=500"`
	Metadata    map[string]string `json:"metadata"`
	ReturnURL   string            `json:"return_url" validate:"omitempty,url"`
	CancelURL   string            `json:"cancel_url" validate:"omitempty,url"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Gateway = strings.ToLower(strings.TrimSpace(body.Gateway))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Description = strings.TrimSpace(body.Description)
	body.ReturnURL = strings.TrimSpace(body.ReturnURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.New("amount must be > 0")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *CreatePaymentRequest) GetGateway() string {
	if r != nil {
		return r.Gateway
	}
	return ""
}

func (r *CreatePaymentRequest) GetAmount() decimal.Decimal {
	if r != nil {
		return r.Amount
	}
	return decimal.Zero
}

func (r *CreatePaymentRequest) GetCurrency() string {
	if r != nil {
		return r.Currency
	}
	return ""
}

func (r *CreatePaymentRequest) GetDescription() string {
	if r != nil {
		return r.Description
	}
	return ""
}

func (r *CreatePaymentRequest) GetMetadata() map[string]string {
	if r != nil {
		return r.Metadata
	}
	return nil
}

func (r *CreatePaymentRequest) GetReturnURL() string {
	if r != nil {
		return r.ReturnURL
	}
	return ""
}

func (r *CreatePaymentRequest) GetCancelURL() string {
	if r != nil {
		return r.CancelURL
	}
	return ""
}

type GetPaymentRequest struct {
	TransactionID string
	Gateway       string
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{
		TransactionID: strings.TrimSpace(ctx.Param("id")),
		Gateway:       strings.ToLower(strings.TrimSpace(ctx.QueryParam("gateway"))),
	}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.TransactionID == "" {
		return errors.New("transaction id is required")
	}
	return nil
}

type RefundPaymentRequest struct {
	Gateway       string           `json:"gateway"`
	TransactionID string           `json:"transaction_id" validate:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	Reason        string           `json:"reason" validate:"max=500"`
}

func NewRefundPaymentRequestFromContext(ctx echo.Context) (*RefundPaymentRequest, error) {
	var body RefundPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Gateway = strings.ToLower(strings.TrimSpace(body.Gateway))
	body.TransactionID = strings.TrimSpace(body.TransactionID)
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *RefundPaymentRequest) Validate() error {
	if r.Amount != nil && !r.Amount.IsPositive() {
		return errors.New("amount must be > 0")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *RefundPaymentRequest) GetGateway() string {
	if r != nil {
		return r.Gateway
	}
	return ""
}

func (r *RefundPaymentRequest) GetTransactionID() string {
	if r != nil {
		return r.TransactionID
	}
	return ""
}

func (r *RefundPaymentRequest) GetAmount() *decimal.Decimal {
	if r != nil {
		return r.Amount
	}
	return nil
}

func (r *RefundPaymentRequest) GetReason() string {
	if r != nil {
		return r.Reason
	}
	return ""
}

type PaymentResultResponse struct {
	Success       bool                   `json:"success"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	ExternalID    string                 `json:"external_id,omitempty"`
	State         string                 `json:"state"`
	CheckoutURL   string                 `json:"checkout_url,omitempty"`
	Amount        string                 `json:"amount,omitempty"`
	Currency      string                 `json:"currency,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

type RefundResultResponse struct {
	Success               bool   `json:"success"`
	RefundID              string `json:"refund_id,omitempty"`
	OriginalTransactionID string `json:"original_transaction_id"`
	Amount                string `json:"amount,omitempty"`
	State                 string `json:"state"`
	Message               string `json:"message,omitempty"`
	Error                 string `json:"error,omitempty"`
}

type GatewaysResponse struct {
	Active   string   `json:"active"`
	Gateways []string `json:"gateways"`
}
