package provider

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

func TestMockPaymentLifecycle(t *testing.T) {
	gateway := NewMockGateway()
	ctx := context.Background()

	created := gateway.CreatePayment(ctx, CreatePaymentInput{
		Amount:   decimal.RequireFromString("30.00"),
		Currency: "USD",
		Metadata: map[string]string{"negocio_id": "b1"},
	})
	if !created.Success || !strings.HasPrefix(created.TransactionID, "mock_pay_") {
		t.Fatalf("unexpected create result: %+v", created)
	}
	if created.CheckoutURL != "https://mock-checkout.local/pay/"+created.TransactionID {
		t.Fatalf("unexpected checkout url: %s", created.CheckoutURL)
	}

	verified := gateway.VerifyPayment(ctx, created.TransactionID)
	if !verified.Success || verified.State != StateCompleted {
		t.Fatalf("unexpected verify result: %+v", verified)
	}

	partial := decimal.RequireFromString("10")
	refund := gateway.ProcessRefund(ctx, created.TransactionID, &partial, "customer request")
	if !refund.Success || !refund.Amount.Equal(partial) || !strings.HasPrefix(refund.RefundID, "mock_ref_") {
		t.Fatalf("unexpected refund: %+v", refund)
	}

	if after := gateway.VerifyPayment(ctx, created.TransactionID); after.State != StateRefunded {
		t.Fatalf("expected refunded state, got %s", after.State)
	}
}

func TestMockFullRefundUsesPaymentAmount(t *testing.T) {
	gateway := NewMockGateway()
	ctx := context.Background()
	created := gateway.CreatePayment(ctx, CreatePaymentInput{Amount: decimal.RequireFromString("12.50"), Currency: "USD"})

	refund := gateway.ProcessRefund(ctx, created.TransactionID, nil, "")
	if !refund.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("expected full refund, got %s", refund.Amount)
	}
}

func TestMockUnknownIDsFailWithoutError(t *testing.T) {
	gateway := NewMockGateway()
	ctx := context.Background()

	if r := gateway.VerifyPayment(ctx, "missing"); r.Success || r.Error == "" {
		t.Fatalf("expected failure result, got %+v", r)
	}
	if r := gateway.ProcessRefund(ctx, "missing", nil, ""); r.Success {
		t.Fatalf("expected refund failure, got %+v", r)
	}
	if r := gateway.CancelSubscription(ctx, "missing", true); r.Success {
		t.Fatalf("expected cancel failure, got %+v", r)
	}
}

func TestMockSubscriptionCancel(t *testing.T) {
	gateway := NewMockGateway()
	ctx := context.Background()
	sub := gateway.CreateSubscription(ctx, CreateSubscriptionInput{Price: decimal.RequireFromString("29.99"), Currency: "USD", Interval: "monthly"})
	if !strings.HasPrefix(sub.TransactionID, "mock_sub_") {
		t.Fatalf("unexpected subscription id: %s", sub.TransactionID)
	}

	cancelled := gateway.CancelSubscription(ctx, sub.TransactionID, false)
	if !cancelled.Success || cancelled.State != StateCancelled {
		t.Fatalf("unexpected cancel result: %+v", cancelled)
	}
}

func TestMockNormalizeWebhook(t *testing.T) {
	gateway := NewMockGateway()

	fields, err := gateway.NormalizeWebhook([]byte(`{"id":"evt_1","tipo":"payment.completed","datos":{"monto":30}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.Type != entity.EventPaymentSuccess || fields.OriginalType != "payment.completed" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if fields.Data["monto"] != json.Number("30") {
		t.Fatalf("expected data from datos key, got %+v", fields.Data)
	}

	unknown, _ := gateway.NormalizeWebhook([]byte(`{"type":"something.else"}`))
	if unknown.Type != entity.EventExternalService {
		t.Fatalf("expected external service type, got %s", unknown.Type)
	}
}

func TestMockNormalizeWithoutIDIsDeterministic(t *testing.T) {
	gateway := NewMockGateway()
	payload := []byte(`{"type":"booking.confirmed","data":{"cita_id":"c1"}}`)

	a, _ := gateway.NormalizeWebhook(payload)
	b, _ := gateway.NormalizeWebhook(payload)
	if a.ID != b.ID || !strings.HasPrefix(a.ID, "mock_evt_") {
		t.Fatalf("expected deterministic id, got %s and %s", a.ID, b.ID)
	}
}

func TestMockGenerateTestWebhookVerifies(t *testing.T) {
	gateway := NewMockGateway()
	payload, sig, err := gateway.GenerateTestWebhook("payment.completed", map[string]interface{}{"monto": 10}, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gateway.VerifyWebhookSignature(payload, sig, "secret") {
		t.Fatal("expected generated webhook to verify")
	}
	if gateway.VerifyWebhookSignature(payload, sig, "other") {
		t.Fatal("expected other secret to fail")
	}
}
