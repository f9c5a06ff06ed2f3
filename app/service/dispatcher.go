package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
	"golang.org/x/sync/errgroup"
)

const (
	deliveryOrigin    = "virtual-queue-cms"
	deliveryVersion   = "1.0"
	deliveryUserAgent = "VirtualQueueCMS-Webhook/1.0"

	headerEventType = "X-Event-Type"
	headerEventID   = "X-Event-ID"
)

type DispatcherConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	MaxConcurrency int
}

type partnerDirectory interface {
	Get(ctx context.Context, id string) (*entity.Partner, error)
	FindByEvent(ctx context.Context, eventType entity.EventType) ([]*entity.Partner, error)
	RecordDeliveryOutcome(ctx context.Context, id string, success bool) error
}

type DeliveryResult struct {
	PartnerID   string
	PartnerName string
	Success     bool
	StatusCode  int
	Attempts    int
	Error       string
}

type DispatchSummary struct {
	EventID   string
	EventType entity.EventType
	Total     int
	Succeeded int
	Failed    int
	Results   []DeliveryResult
}

type deliveryEnvelope struct {
	EventID   string                 `json:"event_id"`
	EventType entity.EventType       `json:"event_type"`
	Timestamp string                 `json:"timestamp"`
	Origin    string                 `json:"origin"`
	Version   string                 `json:"version"`
	Data      map[string]interface{} `json:"data"`
	Metadata  map[string]string      `json:"metadata"`
}

// Dispatcher fans events out to subscribed partners. Each delivery is signed with
// the partner secret and retried on its own, so a slow partner never holds up another.
type Dispatcher struct {
	partners partnerDirectory
	cfg      DispatcherConfig
	client   *http.Client
	logger   logrus.FieldLogger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(partners partnerDirectory, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 16
	}

	return &Dispatcher{
		partners: partners,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   factory.NewModuleLogger("partner-dispatcher"),
		sleep:    sleepContext,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event *entity.NormalizedEvent) DispatchSummary {
	summary := DispatchSummary{EventID: event.ID, EventType: event.Type}

	partners, err := d.partners.FindByEvent(ctx, event.Type)
	if err != nil {
		d.logger.WithError(err).WithField("event_id", event.ID).Error("Resolve subscribed partners failed")
		return summary
	}
	return d.deliverAll(ctx, event, partners)
}

// DispatchTo delivers only to the listed partners that are subscribed to the event.
func (d *Dispatcher) DispatchTo(ctx context.Context, event *entity.NormalizedEvent, partnerIDs []string) DispatchSummary {
	summary := DispatchSummary{EventID: event.ID, EventType: event.Type}

	partners, err := d.partners.FindByEvent(ctx, event.Type)
	if err != nil {
		d.logger.WithError(err).WithField("event_id", event.ID).Error("Resolve subscribed partners failed")
		return summary
	}

	allowed := make(map[string]struct{}, len(partnerIDs))
	for _, id := range partnerIDs {
		allowed[id] = struct{}{}
	}
	filtered := make([]*entity.Partner, 0, len(partners))
	for _, partner := range partners {
		if _, ok := allowed[partner.ID]; ok {
			filtered = append(filtered, partner)
		}
	}
	return d.deliverAll(ctx, event, filtered)
}

// Notify dispatches an internally originated event.
func (d *Dispatcher) Notify(ctx context.Context, eventType entity.EventType, data map[string]interface{}, metadata map[string]string) DispatchSummary {
	return d.Dispatch(ctx, NewInternalEvent(eventType, data, metadata))
}

// NewInternalEvent builds an event for occurrences raised by this service.
func NewInternalEvent(eventType entity.EventType, data map[string]interface{}, metadata map[string]string) *entity.NormalizedEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	event := &entity.NormalizedEvent{
		ID:        "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Type:      eventType,
		Provider:  "internal",
		Amount:    minorAmount(data),
		Currency:  strings.ToUpper(lookupString(data, nil, "currency", "moneda")),
		Data:      data,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	fillReferences(event, data, metadata)
	return event
}

// VerifyPartner sends one signed ping. The endpoint counts as reachable when it
// answers with a non 5xx status.
func (d *Dispatcher) VerifyPartner(ctx context.Context, partnerID string) (DeliveryResult, error) {
	partner, err := d.partners.Get(ctx, partnerID)
	if err != nil {
		return DeliveryResult{}, err
	}

	event := NewInternalEvent(entity.EventPing, map[string]interface{}{
		"message": "webhook connectivity check",
	}, nil)
	body, err := buildEnvelope(event)
	if err != nil {
		return DeliveryResult{}, err
	}

	result := DeliveryResult{PartnerID: partner.ID, PartnerName: partner.Name, Attempts: 1}
	status, err := d.send(ctx, partner, event, body)
	result.StatusCode = status
	if err != nil && status == 0 {
		result.Error = err.Error()
		return result, nil
	}
	result.Success = status < http.StatusInternalServerError
	if !result.Success {
		result.Error = fmt.Sprintf("partner endpoint returned status=%d", status)
	}
	return result, nil
}

func (d *Dispatcher) deliverAll(ctx context.Context, event *entity.NormalizedEvent, partners []*entity.Partner) DispatchSummary {
	summary := DispatchSummary{EventID: event.ID, EventType: event.Type, Total: len(partners)}
	if len(partners) == 0 {
		return summary
	}

	body, err := buildEnvelope(event)
	if err != nil {
		d.logger.WithError(err).WithField("event_id", event.ID).Error("Encode partner envelope failed")
		summary.Failed = len(partners)
		return summary
	}

	results := make([]DeliveryResult, len(partners))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.MaxConcurrency)
	for i, partner := range partners {
		i, partner := i, partner
		group.Go(func() error {
			results[i] = d.deliver(groupCtx, partner, event, body)
			return nil
		})
	}
	_ = group.Wait()

	for _, result := range results {
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Results = results

	d.logger.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Partner dispatch finished")
	return summary
}

func (d *Dispatcher) deliver(ctx context.Context, partner *entity.Partner, event *entity.NormalizedEvent, body []byte) DeliveryResult {
	result := DeliveryResult{PartnerID: partner.ID, PartnerName: partner.Name}
	l := d.logger.WithFields(logrus.Fields{"partner_id": partner.ID, "event_id": event.ID})

	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.cfg.RetryBase*time.Duration(1<<uint(attempt-1))); err != nil {
				result.Error = err.Error()
				break
			}
		}

		result.Attempts = attempt + 1
		status, err := d.send(ctx, partner, event, body)
		result.StatusCode = status
		if err == nil {
			result.Success = true
			result.Error = ""
			break
		}
		result.Error = err.Error()
		l.WithError(err).WithField("attempt", result.Attempts).Debug("Partner delivery attempt failed")
	}

	if !result.Success {
		l.WithField("attempts", result.Attempts).WithField("error", result.Error).Warn("Partner delivery exhausted retries")
	}
	if err := d.partners.RecordDeliveryOutcome(ctx, partner.ID, result.Success); err != nil {
		l.WithError(err).Warn("Record delivery outcome failed")
	}
	return result
}

// send performs one attempt with a fresh timestamp and signature. Only 2xx counts as delivered.
func (d *Dispatcher) send(ctx context.Context, partner *entity.Partner, event *entity.NormalizedEvent, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, partner.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	signed := signature.Sign(body, partner.Secret, time.Time{})
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", deliveryUserAgent)
	req.Header.Set(signature.HeaderSignature, signed.Signature)
	req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(signed.Timestamp, 10))
	req.Header.Set(headerEventType, string(event.Type))
	req.Header.Set(headerEventID, event.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("partner endpoint returned status=%d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func buildEnvelope(event *entity.NormalizedEvent) ([]byte, error) {
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return json.Marshal(deliveryEnvelope{
		EventID:   event.ID,
		EventType: event.Type,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Origin:    deliveryOrigin,
		Version:   deliveryVersion,
		Data:      data,
		Metadata:  metadata,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
