package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

const MockName = "mock"

var mockEventMap = map[string]entity.EventType{
	"payment.completed":      entity.EventPaymentSuccess,
	"payment.failed":         entity.EventPaymentFailed,
	"subscription.created":   entity.EventSubscriptionCreated,
	"subscription.cancelled": entity.EventSubscriptionCancelled,
	"booking.confirmed":      entity.EventBookingConfirmed,
}

type mockPayment struct {
	id          string
	amount      decimal.Decimal
	currency    string
	description string
	state       PaymentState
	metadata    map[string]string
	createdAt   time.Time
}

type mockSubscription struct {
	id        string
	price     decimal.Decimal
	currency  string
	interval  string
	state     string
	immediate bool
}

// MockGateway simulates a provider entirely in memory.
type MockGateway struct {
	mu            sync.Mutex
	payments      map[string]*mockPayment
	subscriptions map[string]*mockSubscription
	now           func() time.Time
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		payments:      map[string]*mockPayment{},
		subscriptions: map[string]*mockSubscription{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (g *MockGateway) Name() string {
	return MockName
}

func (g *MockGateway) CreatePayment(_ context.Context, input CreatePaymentInput) PaymentResult {
	id := "mock_pay_" + randomHex(12)
	now := g.now()

	g.mu.Lock()
	g.payments[id] = &mockPayment{
		id:          id,
		amount:      input.Amount,
		currency:    input.Currency,
		description: input.Description,
		state:       StateCompleted,
		metadata:    input.Metadata,
		createdAt:   now,
	}
	g.mu.Unlock()

	return PaymentResult{
		Success:       true,
		TransactionID: id,
		ExternalID:    id,
		State:         StateCompleted,
		CheckoutURL:   "https://mock-checkout.local/pay/" + id,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Message:       "mock payment created",
		Metadata:      stringMapToAny(input.Metadata),
		Timestamp:     now,
	}
}

func (g *MockGateway) VerifyPayment(_ context.Context, transactionID string) PaymentResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[transactionID]
	if !ok {
		return failedPayment(transactionID, "payment not found")
	}
	return PaymentResult{
		Success:       true,
		TransactionID: p.id,
		ExternalID:    p.id,
		State:         p.state,
		Amount:        p.amount,
		Currency:      p.currency,
		Metadata:      stringMapToAny(p.metadata),
		Timestamp:     g.now(),
	}
}

func (g *MockGateway) ProcessRefund(_ context.Context, transactionID string, amount *decimal.Decimal, reason string) RefundResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[transactionID]
	if !ok {
		return failedRefund(transactionID, "payment not found")
	}

	refunded := p.amount
	if amount != nil {
		refunded = *amount
	}
	p.state = StateRefunded

	if reason == "" {
		reason = "no reason given"
	}
	return RefundResult{
		Success:               true,
		RefundID:              "mock_ref_" + randomHex(12),
		OriginalTransactionID: transactionID,
		Amount:                refunded,
		State:                 StateRefunded,
		Message:               "mock refund: " + reason,
	}
}

func (g *MockGateway) CreateSubscription(_ context.Context, input CreateSubscriptionInput) PaymentResult {
	id := "mock_sub_" + randomHex(12)

	g.mu.Lock()
	g.subscriptions[id] = &mockSubscription{
		id:       id,
		price:    input.Price,
		currency: input.Currency,
		interval: input.Interval,
		state:    "active",
	}
	g.mu.Unlock()

	return PaymentResult{
		Success:       true,
		TransactionID: id,
		ExternalID:    id,
		State:         StateCompleted,
		Amount:        input.Price,
		Currency:      input.Currency,
		Message:       "mock subscription created",
		Metadata:      stringMapToAny(input.Metadata),
		Timestamp:     g.now(),
	}
}

func (g *MockGateway) CancelSubscription(_ context.Context, subscriptionID string, immediate bool) PaymentResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.subscriptions[subscriptionID]
	if !ok {
		return failedPayment(subscriptionID, "subscription not found")
	}
	s.state = "cancelled"
	s.immediate = immediate

	message := "subscription cancelled at period end"
	if immediate {
		message = "subscription cancelled immediately"
	}
	return PaymentResult{
		Success:       true,
		TransactionID: subscriptionID,
		State:         StateCancelled,
		Message:       message,
		Metadata:      map[string]interface{}{},
		Timestamp:     g.now(),
	}
}

func (g *MockGateway) NormalizeWebhook(payload []byte) (*WebhookFields, error) {
	body, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	original := firstString(body, "tipo", "type")
	if original == "" {
		original = "unknown"
	}
	eventType, ok := mockEventMap[original]
	if !ok {
		eventType = entity.EventExternalService
	}

	id := firstString(body, "id")
	if id == "" {
		id = payloadID("mock_evt_", payload)
	}

	data := map[string]interface{}{}
	if raw, ok := firstValue(body, "data", "datos"); ok {
		data = asMap(raw)
	}

	return &WebhookFields{
		ID:           id,
		Type:         eventType,
		OriginalType: original,
		Data:         data,
		Timestamp:    g.now(),
	}, nil
}

func (g *MockGateway) VerifyWebhookSignature(payload []byte, sig, secret string) bool {
	return signature.VerifyPlain(payload, sig, secret)
}

// GenerateTestWebhook builds a mock webhook body and its signature for integration testing.
func (g *MockGateway) GenerateTestWebhook(eventType string, data map[string]interface{}, secret string) ([]byte, string, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"id":        "mock_evt_" + randomHex(8),
		"tipo":      eventType,
		"data":      data,
		"timestamp": g.now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, "", err
	}
	return payload, signature.PlainHMAC(payload, secret), nil
}
