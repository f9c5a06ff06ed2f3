package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

type PaymentState string

const (
	StatePending    PaymentState = "pending"
	StateProcessing PaymentState = "processing"
	StateCompleted  PaymentState = "completed"
	StateFailed     PaymentState = "failed"
	StateRefunded   PaymentState = "refunded"
	StateCancelled  PaymentState = "cancelled"
)

// PaymentResult is returned by every gateway mutation. Expected failures are
// reported with Success=false and Error, never as a Go error.
type PaymentResult struct {
	Success       bool
	TransactionID string
	ExternalID    string
	State         PaymentState
	CheckoutURL   string
	Amount        decimal.Decimal
	Currency      string
	Message       string
	Error         string
	Metadata      map[string]interface{}
	Timestamp     time.Time
}

type RefundResult struct {
	Success               bool
	RefundID              string
	OriginalTransactionID string
	Amount                decimal.Decimal
	State                 PaymentState
	Message               string
	Error                 string
}

type CreatePaymentInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
	ReturnURL   string
	CancelURL   string
}

type CreateSubscriptionInput struct {
	Price    decimal.Decimal
	Currency string
	// Interval is "monthly" or "yearly".
	Interval string
	Metadata map[string]string
}

// WebhookFields is the canonical shape a gateway extracts from its native webhook payload.
type WebhookFields struct {
	ID           string
	Type         entity.EventType
	OriginalType string
	Data         map[string]interface{}
	Timestamp    time.Time
}

type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, input CreatePaymentInput) PaymentResult
	VerifyPayment(ctx context.Context, transactionID string) PaymentResult
	ProcessRefund(ctx context.Context, transactionID string, amount *decimal.Decimal, reason string) RefundResult
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) PaymentResult
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) PaymentResult
	NormalizeWebhook(payload []byte) (*WebhookFields, error)
	VerifyWebhookSignature(payload []byte, signature, secret string) bool
}

func failedPayment(id, reason string) PaymentResult {
	return PaymentResult{
		Success:       false,
		TransactionID: id,
		State:         StateFailed,
		Error:         reason,
		Metadata:      map[string]interface{}{},
		Timestamp:     time.Now().UTC(),
	}
}

func failedRefund(id, reason string) RefundResult {
	return RefundResult{
		Success:               false,
		OriginalTransactionID: id,
		State:                 StateFailed,
		Error:                 reason,
	}
}
