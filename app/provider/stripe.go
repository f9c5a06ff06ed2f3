package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

const (
	StripeName = "stripe"

	stripeDefaultBaseURL = "https://api.stripe.com"
	productName          = "Virtual Queue Premium"
)

var stripeEventMap = map[string]entity.EventType{
	"payment_intent.succeeded":      entity.EventPaymentSuccess,
	"payment_intent.payment_failed": entity.EventPaymentFailed,
	"charge.refunded":               entity.EventPaymentRefunded,
	"customer.subscription.created": entity.EventSubscriptionCreated,
	"customer.subscription.deleted": entity.EventSubscriptionCancelled,
	"customer.subscription.updated": entity.EventSubscriptionRenewed,
	"invoice.paid":                  entity.EventPaymentSuccess,
	"invoice.payment_failed":        entity.EventPaymentFailed,
}

var errStripeNotConfigured = errors.New("stripe is not configured")

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	BaseURL                   string
}

type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = stripeDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) Name() string {
	return StripeName
}

func (g *StripeGateway) configured() bool {
	return strings.TrimSpace(g.cfg.SecretKey) != ""
}

func (g *StripeGateway) CreatePayment(ctx context.Context, input CreatePaymentInput) PaymentResult {
	if !g.configured() {
		return failedPayment("", errStripeNotConfigured.Error())
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(input.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(toMinorUnits(input.Amount), 10))
	values.Set("line_items[0][price_data][product_data][name]", describe(input.Description))
	values.Set("success_url", orDefault(input.ReturnURL, "https://localhost/success"))
	values.Set("cancel_url", orDefault(input.CancelURL, "https://localhost/cancel"))
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := g.request(ctx, http.MethodPost, "/v1/checkout/sessions", values)
	if err != nil {
		return failedPayment("", err.Error())
	}

	var session struct {
		ID            string      `json:"id"`
		URL           string      `json:"url"`
		PaymentIntent interface{} `json:"payment_intent"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return failedPayment("", err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: session.ID,
		ExternalID:    parseStringish(session.PaymentIntent),
		State:         StatePending,
		CheckoutURL:   session.URL,
		Amount:        input.Amount,
		Currency:      strings.ToUpper(input.Currency),
		Message:       "checkout session created",
		Metadata:      map[string]interface{}{"session_id": session.ID},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, transactionID string) PaymentResult {
	if !g.configured() {
		return failedPayment(transactionID, errStripeNotConfigured.Error())
	}
	if strings.TrimSpace(transactionID) == "" {
		return failedPayment(transactionID, "transaction id is required")
	}

	if strings.HasPrefix(transactionID, "cs_") {
		body, err := g.request(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(transactionID), nil)
		if err != nil {
			return failedPayment(transactionID, err.Error())
		}
		var session struct {
			ID            string      `json:"id"`
			PaymentStatus string      `json:"payment_status"`
			AmountTotal   int64       `json:"amount_total"`
			Currency      string      `json:"currency"`
			PaymentIntent interface{} `json:"payment_intent"`
		}
		if err := json.Unmarshal(body, &session); err != nil {
			return failedPayment(transactionID, err.Error())
		}
		return PaymentResult{
			Success:       true,
			TransactionID: transactionID,
			ExternalID:    parseStringish(session.PaymentIntent),
			State:         mapStripeSessionStatus(session.PaymentStatus),
			Amount:        decimal.New(session.AmountTotal, -2),
			Currency:      strings.ToUpper(session.Currency),
			Metadata:      map[string]interface{}{"payment_status": session.PaymentStatus},
			Timestamp:     time.Now().UTC(),
		}
	}

	body, err := g.request(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return failedPayment(transactionID, err.Error())
	}
	var intent struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return failedPayment(transactionID, err.Error())
	}
	return PaymentResult{
		Success:       true,
		TransactionID: transactionID,
		ExternalID:    intent.ID,
		State:         mapStripeIntentStatus(intent.Status),
		Amount:        decimal.New(intent.Amount, -2),
		Currency:      strings.ToUpper(intent.Currency),
		Metadata:      map[string]interface{}{"status": intent.Status},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *StripeGateway) ProcessRefund(ctx context.Context, transactionID string, amount *decimal.Decimal, reason string) RefundResult {
	if !g.configured() {
		return failedRefund(transactionID, errStripeNotConfigured.Error())
	}

	values := url.Values{}
	if strings.HasPrefix(transactionID, "ch_") {
		values.Set("charge", transactionID)
	} else {
		values.Set("payment_intent", transactionID)
	}
	if amount != nil {
		values.Set("amount", strconv.FormatInt(toMinorUnits(*amount), 10))
	}
	if reason != "" {
		values.Set("metadata[reason]", reason)
	}

	body, err := g.request(ctx, http.MethodPost, "/v1/refunds", values)
	if err != nil {
		return failedRefund(transactionID, err.Error())
	}
	var refund struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &refund); err != nil {
		return failedRefund(transactionID, err.Error())
	}

	return RefundResult{
		Success:               true,
		RefundID:              refund.ID,
		OriginalTransactionID: transactionID,
		Amount:                decimal.New(refund.Amount, -2),
		State:                 StateRefunded,
		Message:               "refund " + refund.Status,
	}
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) PaymentResult {
	if !g.configured() {
		return failedPayment("", errStripeNotConfigured.Error())
	}

	productValues := url.Values{}
	productValues.Set("name", productName)
	for k, v := range input.Metadata {
		productValues.Set("metadata["+k+"]", v)
	}
	productResp, err := g.request(ctx, http.MethodPost, "/v1/products", productValues)
	if err != nil {
		return failedPayment("", err.Error())
	}
	var product struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(productResp, &product); err != nil {
		return failedPayment("", err.Error())
	}
	if strings.TrimSpace(product.ID) == "" {
		return failedPayment("", "stripe product id missing")
	}

	interval := "year"
	if input.Interval == "" || input.Interval == "monthly" {
		interval = "month"
	}
	priceValues := url.Values{}
	priceValues.Set("product", product.ID)
	priceValues.Set("currency", strings.ToLower(input.Currency))
	priceValues.Set("unit_amount", strconv.FormatInt(toMinorUnits(input.Price), 10))
	priceValues.Set("recurring[interval]", interval)
	priceResp, err := g.request(ctx, http.MethodPost, "/v1/prices", priceValues)
	if err != nil {
		return failedPayment("", err.Error())
	}
	var price struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(priceResp, &price); err != nil {
		return failedPayment("", err.Error())
	}
	if strings.TrimSpace(price.ID) == "" {
		return failedPayment("", "stripe price id missing")
	}

	return PaymentResult{
		Success:       true,
		TransactionID: price.ID,
		ExternalID:    product.ID,
		State:         StateCompleted,
		Amount:        input.Price,
		Currency:      strings.ToUpper(input.Currency),
		Message:       "subscription product created",
		Metadata:      map[string]interface{}{"product_id": product.ID, "price_id": price.ID},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) PaymentResult {
	if !g.configured() {
		return failedPayment(subscriptionID, errStripeNotConfigured.Error())
	}

	path := "/v1/subscriptions/" + url.PathEscape(subscriptionID)
	var err error
	if immediate {
		_, err = g.request(ctx, http.MethodDelete, path, nil)
	} else {
		values := url.Values{}
		values.Set("cancel_at_period_end", "true")
		_, err = g.request(ctx, http.MethodPost, path, values)
	}
	if err != nil {
		return failedPayment(subscriptionID, err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: subscriptionID,
		State:         StateCancelled,
		Message:       "subscription cancelled",
		Metadata:      map[string]interface{}{"immediate": immediate},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *StripeGateway) NormalizeWebhook(payload []byte) (*WebhookFields, error) {
	var event struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object map[string]interface{} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	original := event.Type
	if original == "" {
		original = "unknown"
	}
	eventType, ok := stripeEventMap[original]
	if !ok {
		eventType = entity.EventExternalService
	}

	object := event.Data.Object
	if object == nil {
		object = map[string]interface{}{}
	}
	data := map[string]interface{}{
		"external_id": parseStringish(object["id"]),
		"amount":      stripeAmount(object),
		"currency":    strings.ToUpper(orDefault(parseStringish(object["currency"]), "usd")),
		"status":      parseStringish(object["status"]),
		"metadata":    asMap(object["metadata"]),
	}

	id := strings.TrimSpace(event.ID)
	if id == "" {
		id = payloadID("stripe_evt_", payload)
	}

	ts := time.Now().UTC()
	if event.Created > 0 {
		ts = time.Unix(event.Created, 0).UTC()
	}

	return &WebhookFields{
		ID:           id,
		Type:         eventType,
		OriginalType: original,
		Data:         data,
		Timestamp:    ts,
	}, nil
}

// VerifyWebhookSignature checks a Stripe-Signature header. An empty secret falls back to the configured one.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, header, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		secret = g.cfg.WebhookSecret
	}
	if strings.TrimSpace(secret) == "" {
		return false
	}
	tolerance := time.Duration(g.cfg.SignatureToleranceSeconds) * time.Second
	return signature.VerifyComposite(payload, header, secret, tolerance)
}

func (g *StripeGateway) request(ctx context.Context, method, path string, values url.Values) ([]byte, error) {
	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe request failed: path=%s status=%d: %s", path, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe request failed: path=%s status=%d", path, resp.StatusCode)
	}

	return respBody, nil
}

func mapStripeIntentStatus(status string) PaymentState {
	switch status {
	case "succeeded":
		return StateCompleted
	case "processing":
		return StateProcessing
	case "canceled":
		return StateCancelled
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return StatePending
	default:
		return StatePending
	}
}

func mapStripeSessionStatus(status string) PaymentState {
	switch status {
	case "paid", "no_payment_required":
		return StateCompleted
	case "unpaid":
		return StatePending
	default:
		return StatePending
	}
}

func stripeAmount(object map[string]interface{}) int64 {
	for _, key := range []string{"amount", "amount_paid", "amount_total"} {
		if n, ok := object[key].(float64); ok && n > 0 {
			return int64(n)
		}
	}
	return 0
}

func describe(description string) string {
	if s := strings.TrimSpace(description); s != "" {
		return s
	}
	return "payment"
}

func orDefault(value, fallback string) string {
	if s := strings.TrimSpace(value); s != "" {
		return s
	}
	return fallback
}
