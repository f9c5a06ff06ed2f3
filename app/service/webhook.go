package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

// EventHandler performs local processing of a normalized event.
type EventHandler func(ctx context.Context, event *entity.NormalizedEvent) error

type WebhookConfig struct {
	// ProviderSecrets maps gateway name to its webhook secret.
	ProviderSecrets map[string]string
	GlobalSecret    string
	Tolerance       time.Duration
	// Async detaches partner dispatch and bus forwarding from the inbound request.
	Async          bool
	ProcessTimeout time.Duration
}

type deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

type eventLog interface {
	Record(ctx context.Context, event *entity.ProcessedEvent) error
	Recent(ctx context.Context, limit int) ([]entity.ProcessedEvent, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event *entity.NormalizedEvent) DispatchSummary
}

type eventForwarder interface {
	Forward(ctx context.Context, event *entity.NormalizedEvent) ForwardResult
}

type partnerLookup interface {
	Get(ctx context.Context, id string) (*entity.Partner, error)
}

type externalWebhookRequest interface {
	GetPartnerID() string
	GetSignature() string
	GetTimestamp() string
	GetPayload() []byte
}

// WebhookOutcome describes an accepted webhook. Dispatch and Forward are nil when
// processing runs asynchronously or the event was a duplicate.
type WebhookOutcome struct {
	EventID   string
	EventType entity.EventType
	Provider  string
	Duplicate bool
	Dispatch  *DispatchSummary
	Forward   *ForwardResult
}

type WebhookService struct {
	cfg        WebhookConfig
	gateways   *provider.Registry
	normalizer *Normalizer
	partners   partnerLookup
	dedupe     deduper
	log        eventLog
	dispatcher eventDispatcher
	forwarder  eventForwarder
	logger     logrus.FieldLogger
	now        func() time.Time

	mu        sync.RWMutex
	handlers  map[entity.EventType][]EventHandler
	fallbacks map[entity.EventType][]EventHandler

	inflight sync.WaitGroup
}

func NewWebhookService(
	cfg WebhookConfig,
	gateways *provider.Registry,
	partners partnerLookup,
	dedupe deduper,
	log eventLog,
	dispatcher eventDispatcher,
	forwarder eventForwarder,
) *WebhookService {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = signature.DefaultTolerance
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	secrets := make(map[string]string, len(cfg.ProviderSecrets))
	for name, secret := range cfg.ProviderSecrets {
		secrets[strings.ToLower(name)] = strings.TrimSpace(secret)
	}
	cfg.ProviderSecrets = secrets

	return &WebhookService{
		cfg:        cfg,
		gateways:   gateways,
		normalizer: NewNormalizer(gateways),
		partners:   partners,
		dedupe:     dedupe,
		log:        log,
		dispatcher: dispatcher,
		forwarder:  forwarder,
		logger:     factory.NewModuleLogger("webhook-service"),
		now:        time.Now,
		handlers:   make(map[entity.EventType][]EventHandler),
		fallbacks:  make(map[entity.EventType][]EventHandler),
	}
}

// RegisterHandler adds a local handler run for every accepted event of eventType.
func (s *WebhookService) RegisterHandler(eventType entity.EventType, handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventType] = append(s.handlers[eventType], handler)
}

// RegisterFallback adds a handler run only when the bus could not take a critical event.
func (s *WebhookService) RegisterFallback(eventType entity.EventType, handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks[eventType] = append(s.fallbacks[eventType], handler)
}

// RunFallback is the EventBusForwarder fallback. It returns the first handler error.
func (s *WebhookService) RunFallback(ctx context.Context, event *entity.NormalizedEvent) error {
	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.fallbacks[event.Type]...)
	s.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// HandleProviderWebhook verifies, normalizes and processes a gateway webhook.
func (s *WebhookService) HandleProviderWebhook(ctx context.Context, providerName string, payload []byte, signatureHeader string) (*WebhookOutcome, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	gateway, err := s.gateways.Get(providerName)
	if err != nil {
		if errors.Is(err, provider.ErrGatewayNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	secret := s.providerSecret(providerName)
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if !gateway.VerifyWebhookSignature(payload, signatureHeader, secret) {
		s.logger.WithField("provider", providerName).Warn("Webhook signature rejected")
		return nil, ErrInvalidSignature
	}

	event, err := s.normalizer.Normalize(providerName, payload)
	if err != nil {
		return nil, err
	}
	event.Metadata["source_gateway"] = providerName

	return s.process(ctx, event, true)
}

type externalPayload struct {
	Origin       string                 `json:"origin"`
	OriginLegacy string                 `json:"origen"`
	EventType    string                 `json:"event_type"`
	EventLegacy  string                 `json:"tipo_evento"`
	Data         map[string]interface{} `json:"data"`
	DataLegacy   map[string]interface{} `json:"datos"`
}

// envelopeKeys are stripped when a flat external body is used as event data.
var envelopeKeys = []string{"origin", "origen", "event_type", "tipo_evento", "data", "datos"}

// flatExternalData treats a body without a data wrapper as the data itself.
func flatExternalData(payload []byte) (map[string]interface{}, error) {
	var data map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	for _, key := range envelopeKeys {
		delete(data, key)
	}
	return data, nil
}

// HandleExternalWebhook accepts events from partners and external services. Both
// the simple and the composite signature schemes are accepted.
func (s *WebhookService) HandleExternalWebhook(ctx context.Context, req externalWebhookRequest) (*WebhookOutcome, error) {
	sig, ts, err := signature.ParseHeaders(req.GetSignature(), req.GetTimestamp())
	if err != nil {
		if errors.Is(err, signature.ErrMalformedTimestamp) {
			return nil, ErrMalformedTimestamp
		}
		return nil, ErrInvalidSignature
	}

	if skew := s.now().Unix() - ts; skew > int64(s.cfg.Tolerance.Seconds()) || -skew > int64(s.cfg.Tolerance.Seconds()) {
		return nil, ErrStaleTimestamp
	}

	secret, origin := s.externalSecret(ctx, strings.TrimSpace(req.GetPartnerID()))
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}
	payload := req.GetPayload()
	if !signature.Verify(payload, sig, secret, ts, s.cfg.Tolerance) {
		s.logger.WithField("origin", origin).Warn("External webhook signature rejected")
		return nil, ErrInvalidSignature
	}

	var body externalPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	eventType := firstNonEmpty(body.EventType, body.EventLegacy, string(entity.EventExternalService))
	if origin == "" {
		origin = firstNonEmpty(body.Origin, body.OriginLegacy, "external")
	}
	data := body.Data
	if data == nil {
		data = body.DataLegacy
	}
	if data == nil {
		if data, err = flatExternalData(payload); err != nil {
			return nil, err
		}
	}

	event, err := s.normalizer.NormalizeExternal(origin, eventType, data)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, event, false)
}

// SendTestWebhook signs a mock webhook and runs it through the provider pipeline.
func (s *WebhookService) SendTestWebhook(ctx context.Context, eventType string, data map[string]interface{}) (*WebhookOutcome, error) {
	gateway, err := s.gateways.Get(provider.MockName)
	if err != nil {
		return nil, ErrProviderUnsupported
	}
	mock, ok := gateway.(*provider.MockGateway)
	if !ok {
		return nil, ErrProviderUnsupported
	}

	secret := s.providerSecret(provider.MockName)
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}
	payload, sig, err := mock.GenerateTestWebhook(eventType, data, secret)
	if err != nil {
		return nil, err
	}
	return s.HandleProviderWebhook(ctx, provider.MockName, payload, sig)
}

func (s *WebhookService) ListEvents(ctx context.Context, limit int) ([]entity.ProcessedEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.log.Recent(ctx, limit)
}

// Wait blocks until asynchronous processing started so far has finished.
func (s *WebhookService) Wait() {
	s.inflight.Wait()
}

func (s *WebhookService) process(ctx context.Context, event *entity.NormalizedEvent, fanOut bool) (*WebhookOutcome, error) {
	outcome := &WebhookOutcome{EventID: event.ID, EventType: event.Type, Provider: event.Provider}
	l := s.logger.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type, "provider": event.Provider})

	claimed, err := s.dedupe.Claim(ctx, event.ID)
	if err != nil {
		l.WithError(err).Warn("Dedupe check failed, processing anyway")
		claimed = true
	}
	if !claimed {
		l.Info("Duplicate webhook ignored")
		outcome.Duplicate = true
		return outcome, nil
	}

	s.runHandlers(ctx, event, l)

	if !s.cfg.Async {
		s.deliver(ctx, event, fanOut, outcome, l)
		return outcome, nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProcessTimeout)
		defer cancel()
		s.deliver(bg, event, fanOut, &WebhookOutcome{EventID: event.ID}, l)
	}()
	return outcome, nil
}

// deliver runs partner dispatch and bus forwarding side by side, then records the event.
func (s *WebhookService) deliver(ctx context.Context, event *entity.NormalizedEvent, fanOut bool, outcome *WebhookOutcome, l logrus.FieldLogger) {
	var (
		wg       sync.WaitGroup
		dispatch DispatchSummary
		forward  ForwardResult
	)

	if fanOut && s.dispatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatch = s.dispatcher.Dispatch(ctx, event)
		}()
	}
	if s.forwarder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			forward = s.forwarder.Forward(ctx, event)
		}()
	}
	wg.Wait()

	if fanOut && s.dispatcher != nil {
		outcome.Dispatch = &dispatch
	}
	if s.forwarder != nil {
		outcome.Forward = &forward
	}

	record := &entity.ProcessedEvent{
		EventID:      event.ID,
		EventType:    event.Type,
		Provider:     event.Provider,
		PartnersSent: dispatch.Total,
		PartnersOK:   dispatch.Succeeded,
		BusDelivered: forward.Delivered,
		Fallback:     forward.FallbackInvoked,
		ReceivedAt:   s.now().UTC(),
	}
	if err := s.log.Record(ctx, record); err != nil {
		l.WithError(err).Warn("Record processed event failed")
	}
}

func (s *WebhookService) runHandlers(ctx context.Context, event *entity.NormalizedEvent, l logrus.FieldLogger) {
	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.handlers[event.Type]...)
	s.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			l.WithError(err).Error("Local event handler failed")
		}
	}
}

func (s *WebhookService) providerSecret(name string) string {
	if secret := s.cfg.ProviderSecrets[name]; secret != "" {
		return secret
	}
	if name == provider.MockName {
		return strings.TrimSpace(s.cfg.GlobalSecret)
	}
	return ""
}

// externalSecret prefers the secret of a known partner and falls back to the global secret.
func (s *WebhookService) externalSecret(ctx context.Context, partnerID string) (string, string) {
	if partnerID != "" && s.partners != nil {
		partner, err := s.partners.Get(ctx, partnerID)
		if err == nil && partner != nil && partner.Active {
			return partner.Secret, partner.Name
		}
	}
	return strings.TrimSpace(s.cfg.GlobalSecret), ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
