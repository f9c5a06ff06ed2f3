package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

const (
	MercadoPagoName = "mercadopago"

	mercadoPagoDefaultBaseURL = "https://api.mercadopago.com"
)

var mercadoPagoEventMap = map[string]entity.EventType{
	"payment":                         entity.EventPaymentSuccess,
	"payment.created":                 entity.EventPaymentSuccess,
	"payment.updated":                 entity.EventPaymentSuccess,
	"plan":                            entity.EventSubscriptionCreated,
	"subscription_preapproval":        entity.EventSubscriptionCreated,
	"subscription_authorized_payment": entity.EventSubscriptionRenewed,
}

var errMercadoPagoNotConfigured = errors.New("mercadopago is not configured")

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
	HTTPTimeout   time.Duration
	BaseURL       string
}

type MercadoPagoGateway struct {
	cfg    MercadoPagoConfig
	client *http.Client
}

func NewMercadoPagoGateway(cfg MercadoPagoConfig) *MercadoPagoGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = mercadoPagoDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &MercadoPagoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *MercadoPagoGateway) Name() string {
	return MercadoPagoName
}

func (g *MercadoPagoGateway) configured() bool {
	return strings.TrimSpace(g.cfg.AccessToken) != ""
}

func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, input CreatePaymentInput) PaymentResult {
	if !g.configured() {
		return failedPayment("", errMercadoPagoNotConfigured.Error())
	}

	reference := input.Metadata["reference"]
	if reference == "" {
		reference = uuid.NewString()
	}
	preference := map[string]interface{}{
		"items": []map[string]interface{}{{
			"title":       describe(input.Description),
			"quantity":    1,
			"unit_price":  input.Amount.InexactFloat64(),
			"currency_id": strings.ToUpper(input.Currency),
		}},
		"back_urls": map[string]string{
			"success": orDefault(input.ReturnURL, "https://localhost/success"),
			"failure": orDefault(input.CancelURL, "https://localhost/failure"),
			"pending": orDefault(input.ReturnURL, "https://localhost/pending"),
		},
		"auto_return":        "approved",
		"external_reference": reference,
		"metadata":           input.Metadata,
	}

	var resp struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := g.call(ctx, http.MethodPost, "/checkout/preferences", preference, &resp); err != nil {
		return failedPayment("", err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: resp.ID,
		ExternalID:    resp.ID,
		State:         StatePending,
		CheckoutURL:   resp.InitPoint,
		Amount:        input.Amount,
		Currency:      strings.ToUpper(input.Currency),
		Message:       "payment preference created",
		Metadata:      map[string]interface{}{"preference_id": resp.ID},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *MercadoPagoGateway) VerifyPayment(ctx context.Context, transactionID string) PaymentResult {
	if !g.configured() {
		return failedPayment(transactionID, errMercadoPagoNotConfigured.Error())
	}

	var resp struct {
		ID                json.Number     `json:"id"`
		Status            string          `json:"status"`
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		CurrencyID        string          `json:"currency_id"`
		ExternalReference string          `json:"external_reference"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(transactionID), nil, &resp); err != nil {
		return failedPayment(transactionID, err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: transactionID,
		ExternalID:    resp.ID.String(),
		State:         mapMercadoPagoStatus(resp.Status),
		Amount:        resp.TransactionAmount,
		Currency:      resp.CurrencyID,
		Metadata:      map[string]interface{}{"status": resp.Status, "external_reference": resp.ExternalReference},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *MercadoPagoGateway) ProcessRefund(ctx context.Context, transactionID string, amount *decimal.Decimal, _ string) RefundResult {
	if !g.configured() {
		return failedRefund(transactionID, errMercadoPagoNotConfigured.Error())
	}

	body := map[string]interface{}{}
	if amount != nil {
		body["amount"] = amount.InexactFloat64()
	}
	var resp struct {
		ID     json.Number     `json:"id"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(transactionID)+"/refunds", body, &resp); err != nil {
		return failedRefund(transactionID, err.Error())
	}

	refunded := resp.Amount
	if refunded.IsZero() && amount != nil {
		refunded = *amount
	}
	return RefundResult{
		Success:               true,
		RefundID:              resp.ID.String(),
		OriginalTransactionID: transactionID,
		Amount:                refunded,
		State:                 StateRefunded,
		Message:               "refund processed",
	}
}

func (g *MercadoPagoGateway) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) PaymentResult {
	if !g.configured() {
		return failedPayment("", errMercadoPagoNotConfigured.Error())
	}

	frequencyType := "years"
	if input.Interval == "" || input.Interval == "monthly" {
		frequencyType = "months"
	}
	plan := map[string]interface{}{
		"reason": productName,
		"auto_recurring": map[string]interface{}{
			"frequency":          1,
			"frequency_type":     frequencyType,
			"transaction_amount": input.Price.InexactFloat64(),
			"currency_id":        strings.ToUpper(input.Currency),
		},
		"back_url": orDefault(input.Metadata["return_url"], "https://localhost/subscription"),
	}

	var resp struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := g.call(ctx, http.MethodPost, "/preapproval", plan, &resp); err != nil {
		return failedPayment("", err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: resp.ID,
		ExternalID:    resp.ID,
		State:         StatePending,
		CheckoutURL:   resp.InitPoint,
		Amount:        input.Price,
		Currency:      strings.ToUpper(input.Currency),
		Message:       "subscription plan created",
		Metadata:      map[string]interface{}{"preapproval_id": resp.ID},
		Timestamp:     time.Now().UTC(),
	}
}

// CancelSubscription cancels the preapproval. MercadoPago has no period-end cancellation,
// so immediate is ignored.
func (g *MercadoPagoGateway) CancelSubscription(ctx context.Context, subscriptionID string, _ bool) PaymentResult {
	if !g.configured() {
		return failedPayment(subscriptionID, errMercadoPagoNotConfigured.Error())
	}

	body := map[string]string{"status": "cancelled"}
	if err := g.call(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(subscriptionID), body, nil); err != nil {
		return failedPayment(subscriptionID, err.Error())
	}

	return PaymentResult{
		Success:       true,
		TransactionID: subscriptionID,
		State:         StateCancelled,
		Message:       "subscription cancelled",
		Metadata:      map[string]interface{}{},
		Timestamp:     time.Now().UTC(),
	}
}

func (g *MercadoPagoGateway) NormalizeWebhook(payload []byte) (*WebhookFields, error) {
	body, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	original := firstString(body, "type", "action")
	if original == "" {
		original = "unknown"
	}
	eventType, ok := mercadoPagoEventMap[original]
	if !ok {
		eventType = entity.EventExternalService
	}

	id := firstString(body, "id")
	if id == "" {
		id = payloadID("mp_evt_", payload)
	}

	inner := asMap(body["data"])
	data := map[string]interface{}{
		"external_id": parseStringish(inner["id"]),
		"metadata":    asMap(body["metadata"]),
	}

	return &WebhookFields{
		ID:           id,
		Type:         eventType,
		OriginalType: original,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (g *MercadoPagoGateway) VerifyWebhookSignature(payload []byte, sig, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		secret = g.cfg.WebhookSecret
	}
	return signature.VerifyPlain(payload, sig, secret)
}

func (g *MercadoPagoGateway) call(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.AccessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("mercadopago request failed: path=%s status=%d: %s", path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("mercadopago request failed: path=%s status=%d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func mapMercadoPagoStatus(status string) PaymentState {
	switch status {
	case "approved":
		return StateCompleted
	case "in_process":
		return StateProcessing
	case "rejected":
		return StateFailed
	case "refunded", "charged_back":
		return StateRefunded
	case "cancelled":
		return StateCancelled
	default:
		return StatePending
	}
}
