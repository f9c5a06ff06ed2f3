package controller

import (
	"net/http"
	"testing"

	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

func TestCreatePaymentBadBody(t *testing.T) {
	ctrl := NewPaymentController(newFixture(t).payments)
	ctx, rec := newContext(http.MethodPost, "/payments", "{bad")

	if err := ctrl.CreatePayment(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateVerifyRefundWithMockGateway(t *testing.T) {
	ctrl := NewPaymentController(newFixture(t).payments)

	ctx, rec := newContext(http.MethodPost, "/payments", `{"amount":"15.50","currency":"usd","description":"tour"}`)
	_ = ctrl.CreatePayment(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var created types.PaymentResultResponse
	decode(t, rec, &created)
	if !created.Success || created.Amount != "15.50" || created.Currency != "USD" || created.CheckoutURL == "" {
		t.Fatalf("unexpected payment: %+v", created)
	}

	ctx, rec = newContext(http.MethodGet, "/payments/"+created.TransactionID, "")
	_ = ctrl.GetPayment(withParams(ctx, "id", created.TransactionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	ctx, rec = newContext(http.MethodPost, "/payments/refund", `{"transaction_id":"`+created.TransactionID+`","amount":"5.00"}`)
	_ = ctrl.Refund(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var refund types.RefundResultResponse
	decode(t, rec, &refund)
	if !refund.Success || refund.OriginalTransactionID != created.TransactionID {
		t.Fatalf("unexpected refund: %+v", refund)
	}
}

func TestPaymentUnsupportedGateway(t *testing.T) {
	ctrl := NewPaymentController(newFixture(t).payments)
	ctx, rec := newContext(http.MethodPost, "/payments", `{"gateway":"paypal","amount":"10","currency":"USD"}`)

	_ = ctrl.CreatePayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPaymentUnconfiguredGatewayIsBadGateway(t *testing.T) {
	ctrl := NewPaymentController(newFixture(t).payments)
	ctx, rec := newContext(http.MethodPost, "/payments", `{"gateway":"stripe","amount":"10","currency":"USD"}`)

	_ = ctrl.CreatePayment(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp types.PaymentResultResponse
	decode(t, rec, &resp)
	if resp.Success || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGatewaysAndHealth(t *testing.T) {
	f := newFixture(t)

	ctx, rec := newContext(http.MethodGet, "/payments/gateways", "")
	_ = NewPaymentController(f.payments).Gateways(ctx)
	var gateways types.GatewaysResponse
	decode(t, rec, &gateways)
	if gateways.Active != "mock" || len(gateways.Gateways) != 2 {
		t.Fatalf("unexpected gateways: %+v", gateways)
	}

	ctx, rec = newContext(http.MethodGet, "/health", "")
	_ = NewHealthController(f.payments, f.bus).Health(ctx)
	var health types.HealthResponse
	decode(t, rec, &health)
	if rec.Code != http.StatusOK || health.Status != "ok" || health.EventBus != "disabled" || health.Gateway != "mock" {
		t.Fatalf("unexpected health: %d %+v", rec.Code, health)
	}
}
