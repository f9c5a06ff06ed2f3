package service

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

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
)

const (
	busEventSource = "payment-service"

	headerEventSource = "X-Event-Source"
	headerProvider    = "X-Provider"
)

var ErrBusDisabled = errors.New("event bus is disabled")

// BusTransport delivers one event to the central bus.
type BusTransport interface {
	Send(ctx context.Context, event *entity.NormalizedEvent) error
	Health(ctx context.Context) error
}

// FallbackFunc handles a critical event locally when the bus cannot be reached.
type FallbackFunc func(ctx context.Context, event *entity.NormalizedEvent) error

type EventBusConfig struct {
	Enabled    bool
	MaxRetries int
	RetryDelay time.Duration
}

type ForwardResult struct {
	Delivered       bool
	Attempts        int
	FallbackInvoked bool
	Error           string
}

type busMessage struct {
	EventID    string                 `json:"event_id"`
	EventType  entity.EventType       `json:"event_type"`
	Provider   string                 `json:"provider"`
	Amount     int64                  `json:"amount"`
	Currency   string                 `json:"currency,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	BusinessID string                 `json:"business_id,omitempty"`
	BookingID  string                 `json:"booking_id,omitempty"`
	Data       map[string]interface{} `json:"data"`
	Metadata   map[string]string      `json:"metadata"`
	Timestamp  string                 `json:"timestamp"`
}

func newBusMessage(event *entity.NormalizedEvent) busMessage {
	return busMessage{
		EventID:    event.ID,
		EventType:  event.Type,
		Provider:   event.Provider,
		Amount:     event.Amount,
		Currency:   event.Currency,
		UserID:     event.UserID,
		BusinessID: event.BusinessID,
		BookingID:  event.BookingID,
		Data:       event.Data,
		Metadata:   event.Metadata,
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
	}
}

// criticalEvents fall back to local handling when the bus is unreachable.
var criticalEvents = map[entity.EventType]struct{}{
	entity.EventPaymentSuccess: {},
}

func IsCriticalEvent(eventType entity.EventType) bool {
	_, ok := criticalEvents[eventType]
	return ok
}

// EventBusForwarder forwards events to the bus with its own retry policy.
type EventBusForwarder struct {
	transport BusTransport
	cfg       EventBusConfig
	fallback  FallbackFunc
	logger    logrus.FieldLogger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewEventBusForwarder(transport BusTransport, cfg EventBusConfig, fallback FallbackFunc) *EventBusForwarder {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &EventBusForwarder{
		transport: transport,
		cfg:       cfg,
		fallback:  fallback,
		logger:    factory.NewModuleLogger("event-bus"),
		sleep:     sleepContext,
	}
}

// SetFallback replaces the fallback used for critical events.
func (f *EventBusForwarder) SetFallback(fallback FallbackFunc) {
	f.fallback = fallback
}

func (f *EventBusForwarder) Forward(ctx context.Context, event *entity.NormalizedEvent) ForwardResult {
	l := f.logger.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	result := ForwardResult{}

	if !f.cfg.Enabled || f.transport == nil {
		result.Error = ErrBusDisabled.Error()
		return f.handleUndelivered(ctx, event, result, l)
	}

	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		lastErr = f.transport.Send(ctx, event)
		if lastErr == nil {
			result.Delivered = true
			l.WithField("attempts", result.Attempts).Debug("Event forwarded to bus")
			return result
		}
		l.WithError(lastErr).WithField("attempt", result.Attempts).Debug("Event bus attempt failed")

		if attempt < f.cfg.MaxRetries-1 {
			if err := f.sleep(ctx, f.cfg.RetryDelay*time.Duration(attempt+1)); err != nil {
				lastErr = err
				break
			}
		}
	}

	result.Error = lastErr.Error()
	return f.handleUndelivered(ctx, event, result, l)
}

func (f *EventBusForwarder) Health(ctx context.Context) error {
	if !f.cfg.Enabled || f.transport == nil {
		return ErrBusDisabled
	}
	return f.transport.Health(ctx)
}

func (f *EventBusForwarder) handleUndelivered(ctx context.Context, event *entity.NormalizedEvent, result ForwardResult, l logrus.FieldLogger) ForwardResult {
	if !IsCriticalEvent(event.Type) || f.fallback == nil {
		l.WithField("error", result.Error).Warn("Event not delivered to bus")
		return result
	}

	result.FallbackInvoked = true
	l.Info("Invoking local fallback for critical event")
	if err := f.fallback(ctx, event); err != nil {
		l.WithError(err).Error("Local fallback failed")
		result.Error = fmt.Sprintf("%s; fallback: %v", result.Error, err)
	}
	return result
}

// HTTPBusTransport posts events as JSON to a webhook style bus endpoint.
type HTTPBusTransport struct {
	url    string
	client *http.Client
}

func NewHTTPBusTransport(endpoint string, timeout time.Duration) *HTTPBusTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBusTransport{url: strings.TrimSpace(endpoint), client: &http.Client{Timeout: timeout}}
}

func (t *HTTPBusTransport) Send(ctx context.Context, event *entity.NormalizedEvent) error {
	body, err := json.Marshal(newBusMessage(event))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventSource, busEventSource)
	req.Header.Set(headerEventType, string(event.Type))
	req.Header.Set(headerProvider, event.Provider)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("event bus returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

// Health probes GET <scheme>://<host>/healthz on the bus host.
func (t *HTTPBusTransport) Health(ctx context.Context) error {
	parsed, err := url.Parse(t.url)
	if err != nil {
		return err
	}
	parsed.Path = "/healthz"
	parsed.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event bus health returned status=%d", resp.StatusCode)
	}
	return nil
}

// KafkaWriter is the subset of kafka.Writer the transport needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBusTransport publishes events to a topic keyed by event id.
type KafkaBusTransport struct {
	writer  KafkaWriter
	brokers []string
	dial    func(ctx context.Context, network, address string) (*kafka.Conn, error)
}

func NewKafkaBusTransport(brokers []string, topic string) *KafkaBusTransport {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaBusTransportWithWriter(writer, brokers)
}

func NewKafkaBusTransportWithWriter(writer KafkaWriter, brokers []string) *KafkaBusTransport {
	return &KafkaBusTransport{writer: writer, brokers: brokers, dial: kafka.DialContext}
}

func (t *KafkaBusTransport) Send(ctx context.Context, event *entity.NormalizedEvent) error {
	body, err := json.Marshal(newBusMessage(event))
	if err != nil {
		return err
	}
	return t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: headerEventSource, Value: []byte(busEventSource)},
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerProvider, Value: []byte(event.Provider)},
		},
	})
}

// Health succeeds when any broker accepts a connection.
func (t *KafkaBusTransport) Health(ctx context.Context) error {
	if len(t.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, broker := range t.brokers {
		conn, err := t.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return lastErr
}

func (t *KafkaBusTransport) Close() error {
	return t.writer.Close()
}
