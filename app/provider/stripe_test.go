package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

func stripeHeader(payload []byte, secret string, ts int64) string {
	signed := fmt.Sprintf("%d.%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	payload := []byte(`{"id":"evt_1"}`)
	header := stripeHeader(payload, "whsec_test", time.Now().Unix())

	if !gateway.VerifyWebhookSignature(payload, header, "") {
		t.Fatal("expected signature to validate with configured secret")
	}
	if gateway.VerifyWebhookSignature(payload, header, "wrong-secret") {
		t.Fatal("expected signature with wrong secret to fail")
	}

	stale := stripeHeader(payload, "whsec_test", time.Now().Add(-time.Hour).Unix())
	if gateway.VerifyWebhookSignature(payload, stale, "") {
		t.Fatal("expected stale signature to fail")
	}
}

func TestStripeVerifyWebhookSignatureWithoutSecret(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})
	payload := []byte(`{"id":"evt_1"}`)
	if gateway.VerifyWebhookSignature(payload, stripeHeader(payload, "", time.Now().Unix()), "") {
		t.Fatal("expected verification to fail without any secret")
	}
}

func TestStripeNormalizeWebhook(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{})
	payload := []byte(`{
		"id": "evt_123",
		"type": "payment_intent.succeeded",
		"created": 1700000000,
		"data": {"object": {"id": "pi_1", "amount": 2999, "currency": "usd", "status": "succeeded", "metadata": {"usuario_id": "u1"}}}
	}`)

	first, err := gateway.NormalizeWebhook(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != "evt_123" || first.Type != entity.EventPaymentSuccess {
		t.Fatalf("unexpected normalized event: %+v", first)
	}
	if first.Data["amount"] != int64(2999) || first.Data["currency"] != "USD" {
		t.Fatalf("unexpected data: %+v", first.Data)
	}
	if !first.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected timestamp: %v", first.Timestamp)
	}

	second, _ := gateway.NormalizeWebhook(payload)
	if second.ID != first.ID || second.Type != first.Type {
		t.Fatal("expected idempotent normalization")
	}
}

func TestStripeNormalizeEventMapping(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{})
	cases := map[string]entity.EventType{
		"invoice.paid":                  entity.EventPaymentSuccess,
		"invoice.payment_failed":        entity.EventPaymentFailed,
		"charge.refunded":               entity.EventPaymentRefunded,
		"customer.subscription.created": entity.EventSubscriptionCreated,
		"customer.subscription.deleted": entity.EventSubscriptionCancelled,
		"customer.subscription.updated": entity.EventSubscriptionRenewed,
		"radar.early_fraud_warning":     entity.EventExternalService,
	}
	for stripeType, want := range cases {
		fields, err := gateway.NormalizeWebhook([]byte(`{"id":"evt","type":"` + stripeType + `","data":{"object":{}}}`))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", stripeType, err)
		}
		if fields.Type != want {
			t.Fatalf("%s: expected %s, got %s", stripeType, want, fields.Type)
		}
	}
}

func TestStripeNormalizeWebhookRejectsMalformedJSON(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{})
	if _, err := gateway.NormalizeWebhook([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestStripeUnconfiguredReturnsFailureResult(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{})
	result := gateway.CreatePayment(context.Background(), CreatePaymentInput{Amount: decimal.RequireFromString("10"), Currency: "USD"})
	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.Error != "stripe is not configured" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
}

func TestStripeCreatePaymentAgainstAPI(t *testing.T) {
	var gotForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		_ = r.ParseForm()
		gotForm = r.Form.Get("line_items[0][price_data][unit_amount]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/cs_test_1","payment_intent":"pi_1"}`))
	}))
	defer srv.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result := gateway.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:      decimal.RequireFromString("29.99"),
		Currency:    "usd",
		Description: "premium",
	})
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if gotForm != "2999" {
		t.Fatalf("expected amount in minor units, got %s", gotForm)
	}
	if result.CheckoutURL == "" || result.TransactionID != "cs_test_1" || result.State != StatePending {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStripeVerifyPaymentMapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/checkout/sessions/"):
			_, _ = w.Write([]byte(`{"id":"cs_1","payment_status":"paid","amount_total":1500,"currency":"usd"}`))
		case strings.HasPrefix(r.URL.Path, "/v1/payment_intents/"):
			_, _ = w.Write([]byte(`{"id":"pi_1","status":"requires_payment_method","amount":1500,"currency":"usd"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})

	session := gateway.VerifyPayment(context.Background(), "cs_1")
	if !session.Success || session.State != StateCompleted {
		t.Fatalf("unexpected session result: %+v", session)
	}
	if !session.Amount.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("unexpected amount: %s", session.Amount)
	}

	intent := gateway.VerifyPayment(context.Background(), "pi_1")
	if !intent.Success || intent.State != StatePending {
		t.Fatalf("unexpected intent result: %+v", intent)
	}
}

func TestStripeAPIErrorBecomesFailureResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"No such payment_intent"}}`))
	}))
	defer srv.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result := gateway.ProcessRefund(context.Background(), "pi_missing", nil, "")
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error, "No such payment_intent") {
		t.Fatalf("unexpected error: %s", result.Error)
	}
}

func TestStripeCancelSubscription(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"canceled"}`))
	}))
	defer srv.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	if r := gateway.CancelSubscription(context.Background(), "sub_1", true); !r.Success || r.State != StateCancelled {
		t.Fatalf("unexpected immediate cancel: %+v", r)
	}
	if r := gateway.CancelSubscription(context.Background(), "sub_1", false); !r.Success {
		t.Fatalf("unexpected period-end cancel: %+v", r)
	}
	if len(methods) != 2 || methods[0] != http.MethodDelete || methods[1] != http.MethodPost {
		t.Fatalf("unexpected methods: %v", methods)
	}
}
