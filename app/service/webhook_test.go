package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

type countingDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *countingDispatcher) Dispatch(_ context.Context, event *entity.NormalizedEvent) DispatchSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event.ID)
	return DispatchSummary{EventID: event.ID, Total: 1, Succeeded: 1}
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type countingForwarder struct {
	mu    sync.Mutex
	calls int
}

func (f *countingForwarder) Forward(context.Context, *entity.NormalizedEvent) ForwardResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return ForwardResult{Delivered: true, Attempts: 1}
}

type externalRequest struct {
	partnerID string
	signature string
	timestamp string
	payload   []byte
}

func (r externalRequest) GetPartnerID() string { return r.partnerID }
func (r externalRequest) GetSignature() string { return r.signature }
func (r externalRequest) GetTimestamp() string { return r.timestamp }
func (r externalRequest) GetPayload() []byte   { return r.payload }

type webhookFixture struct {
	svc        *WebhookService
	partners   *PartnerService
	dispatcher *countingDispatcher
	forwarder  *countingForwarder
	log        *repository.MemoryEventLog
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	partners := NewPartnerService(repository.NewMemoryPartnerStore())
	f := &webhookFixture{
		partners:   partners,
		dispatcher: &countingDispatcher{},
		forwarder:  &countingForwarder{},
		log:        repository.NewMemoryEventLog(10),
	}
	f.svc = NewWebhookService(
		WebhookConfig{GlobalSecret: "global-secret"},
		newTestRegistry(t),
		partners,
		repository.NewMemoryDedupe(time.Hour),
		f.log,
		f.dispatcher,
		f.forwarder,
	)
	return f
}

func TestProviderWebhookProcessesOnce(t *testing.T) {
	f := newWebhookFixture(t)

	var handled int
	f.svc.RegisterHandler(entity.EventPaymentSuccess, func(_ context.Context, event *entity.NormalizedEvent) error {
		handled++
		if event.Metadata["source_gateway"] != "mock" {
			t.Errorf("unexpected metadata: %v", event.Metadata)
		}
		return nil
	})

	payload := []byte(`{"id":"mock_evt_1","tipo":"payment.completed","data":{"amount":2999,"usuario_id":"u1"}}`)
	sig := signature.PlainHMAC(payload, "global-secret")

	first, err := f.svc.HandleProviderWebhook(context.Background(), "mock", payload, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Duplicate || first.EventType != entity.EventPaymentSuccess || first.Dispatch == nil || first.Forward == nil {
		t.Fatalf("unexpected outcome: %+v", first)
	}

	second, err := f.svc.HandleProviderWebhook(context.Background(), "mock", payload, sig)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("expected replay to be reported as duplicate")
	}
	if handled != 1 || f.dispatcher.count() != 1 || f.forwarder.calls != 1 {
		t.Fatalf("expected single processing, handled=%d dispatch=%d forward=%d", handled, f.dispatcher.count(), f.forwarder.calls)
	}

	events, _ := f.svc.ListEvents(context.Background(), 0)
	if len(events) != 1 || events[0].EventID != "mock_evt_1" || !events[0].BusDelivered {
		t.Fatalf("unexpected event log: %+v", events)
	}
}

func TestProviderWebhookRejections(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"id":"mock_evt_2","tipo":"payment.completed"}`)

	if _, err := f.svc.HandleProviderWebhook(context.Background(), "mock", payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, err := f.svc.HandleProviderWebhook(context.Background(), "stripe", payload, "t=1,v1=aa"); !errors.Is(err, ErrWebhookSecretMissing) {
		t.Fatalf("expected ErrWebhookSecretMissing, got %v", err)
	}
	if _, err := f.svc.HandleProviderWebhook(context.Background(), "paypal", payload, ""); !errors.Is(err, ErrProviderUnsupported) {
		t.Fatalf("expected ErrProviderUnsupported, got %v", err)
	}

	malformed := []byte(`{not json`)
	if _, err := f.svc.HandleProviderWebhook(context.Background(), "mock", malformed, signature.PlainHMAC(malformed, "global-secret")); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	if f.dispatcher.count() != 0 {
		t.Fatal("rejected webhooks must not be dispatched")
	}
}

func TestExternalWebhookSignatureSchemes(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"origin":"shelter","event_type":"animal.adopted","data":{"event_id":"ext_1","email":"a@b.c"}}`)

	var handled []string
	f.svc.RegisterHandler(entity.EventAnimalAdopted, func(_ context.Context, event *entity.NormalizedEvent) error {
		handled = append(handled, event.ID)
		return nil
	})

	signed := signature.Sign(payload, "global-secret", time.Time{})
	outcome, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
		signature: signed.Signature,
		timestamp: strconv.FormatInt(signed.Timestamp, 10),
		payload:   payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.EventID != "ext_1" || outcome.Provider != "external" || outcome.Dispatch != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	other := []byte(`{"origen":"shelter","tipo_evento":"adoption.completed","datos":{"id":"ext_2"}}`)
	composite := signature.FormatComposite(signature.Sign(other, "global-secret", time.Time{}))
	outcome, err = f.svc.HandleExternalWebhook(context.Background(), externalRequest{signature: composite, payload: other})
	if err != nil {
		t.Fatalf("unexpected composite error: %v", err)
	}
	if outcome.EventType != entity.EventAdoptionCompleted {
		t.Fatalf("unexpected type: %s", outcome.EventType)
	}
	if len(handled) != 1 || handled[0] != "ext_1" {
		t.Fatalf("unexpected handler calls: %v", handled)
	}
	if f.dispatcher.count() != 0 || f.forwarder.calls != 2 {
		t.Fatalf("external events are forwarded but not re-dispatched, dispatch=%d forward=%d", f.dispatcher.count(), f.forwarder.calls)
	}
}

func TestExternalWebhookTimestampChecks(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"event_type":"order.created","data":{}}`)

	stale := signature.Sign(payload, "global-secret", time.Now().Add(-10*time.Minute))
	_, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
		signature: stale.Signature,
		timestamp: strconv.FormatInt(stale.Timestamp, 10),
		payload:   payload,
	})
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}

	_, err = f.svc.HandleExternalWebhook(context.Background(), externalRequest{signature: "abc", timestamp: "yesterday", payload: payload})
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp, got %v", err)
	}

	_, err = f.svc.HandleExternalWebhook(context.Background(), externalRequest{payload: payload})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing headers, got %v", err)
	}
}

func TestExternalWebhookUsesPartnerSecret(t *testing.T) {
	f := newWebhookFixture(t)
	partner := registerPartner(t, f.partners, "Shelter", "https://shelter.test/hook", "animal.adopted")
	payload := []byte(`{"event_type":"animal.adopted","data":{"id":"ext_p1"}}`)

	withGlobal := signature.Sign(payload, "global-secret", time.Time{})
	_, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
		partnerID: partner.ID,
		signature: withGlobal.Signature,
		timestamp: strconv.FormatInt(withGlobal.Timestamp, 10),
		payload:   payload,
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected partner secret to be required, got %v", err)
	}

	withPartner := signature.Sign(payload, partner.Secret, time.Time{})
	outcome, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
		partnerID: partner.ID,
		signature: withPartner.Signature,
		timestamp: strconv.FormatInt(withPartner.Timestamp, 10),
		payload:   payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.EventID != "ext_p1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestExternalWebhookDefaultsEventType(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"origen":"crm","datos":{"id":"x1"}}`)

	signed := signature.Sign(payload, "global-secret", time.Time{})
	outcome, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
		signature: signed.Signature,
		timestamp: strconv.FormatInt(signed.Timestamp, 10),
		payload:   payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.EventType != entity.EventExternalService || outcome.EventID != "x1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestExternalWebhookFlatBodyIsData(t *testing.T) {
	f := newWebhookFixture(t)
	var bookings []string
	f.svc.RegisterHandler(entity.EventBookingConfirmed, func(_ context.Context, event *entity.NormalizedEvent) error {
		bookings = append(bookings, event.BookingID)
		return nil
	})

	var ids []string
	for _, booking := range []string{"c1", "c2"} {
		payload := []byte(`{"origen":"crm","event_type":"booking.confirmed","cita_id":"` + booking + `","negocio_id":"n1"}`)
		signed := signature.Sign(payload, "global-secret", time.Time{})
		outcome, err := f.svc.HandleExternalWebhook(context.Background(), externalRequest{
			signature: signed.Signature,
			timestamp: strconv.FormatInt(signed.Timestamp, 10),
			payload:   payload,
		})
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", booking, err)
		}
		if outcome.Duplicate {
			t.Fatalf("booking %s treated as duplicate", booking)
		}
		ids = append(ids, outcome.EventID)
	}

	if ids[0] == ids[1] {
		t.Fatalf("flat bodies share event id %q", ids[0])
	}
	if len(bookings) != 2 || bookings[0] != "c1" || bookings[1] != "c2" {
		t.Fatalf("unexpected booking ids: %v", bookings)
	}
}

func TestAsyncProcessingDetachesDelivery(t *testing.T) {
	f := newWebhookFixture(t)
	f.svc.cfg.Async = true

	outcome, err := f.svc.SendTestWebhook(context.Background(), "booking.confirmed", map[string]interface{}{"cita_id": "b1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Dispatch != nil {
		t.Fatal("async outcome must not carry a dispatch summary")
	}
	f.svc.Wait()
	if f.dispatcher.count() != 1 {
		t.Fatalf("expected background dispatch, got %d", f.dispatcher.count())
	}
}

func TestRunFallbackCallsRegisteredHandlers(t *testing.T) {
	f := newWebhookFixture(t)
	var calls int
	f.svc.RegisterFallback(entity.EventPaymentSuccess, func(context.Context, *entity.NormalizedEvent) error {
		calls++
		return errors.New("first")
	})
	f.svc.RegisterFallback(entity.EventPaymentSuccess, func(context.Context, *entity.NormalizedEvent) error {
		calls++
		return nil
	})

	err := f.svc.RunFallback(context.Background(), NewInternalEvent(entity.EventPaymentSuccess, nil, nil))
	if err == nil || err.Error() != "first" || calls != 2 {
		t.Fatalf("unexpected fallback run: err=%v calls=%d", err, calls)
	}
}
