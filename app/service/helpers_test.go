package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRegistry(t *testing.T, gateways ...provider.Gateway) *provider.Registry {
	t.Helper()
	if len(gateways) == 0 {
		gateways = []provider.Gateway{provider.NewMockGateway(), provider.NewStripeGateway(provider.StripeConfig{})}
	}
	reg, err := provider.NewRegistry(provider.MockName, gateways...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

type partnerRequest struct {
	name   string
	url    string
	events []string
}

func (r partnerRequest) GetName() string         { return r.name }
func (r partnerRequest) GetWebhookURL() string   { return r.url }
func (r partnerRequest) GetEvents() []string     { return r.events }
func (r partnerRequest) GetDescription() string  { return "" }
func (r partnerRequest) GetContactEmail() string { return "" }

type subscriptionRequest struct {
	userID    string
	email     string
	withTrial bool
}

func (r subscriptionRequest) GetUserID() string        { return r.userID }
func (r subscriptionRequest) GetEmail() string         { return r.email }
func (r subscriptionRequest) GetWithTrial() bool       { return r.withTrial }
func (r subscriptionRequest) GetPaymentMethod() string { return "card" }

type cancelRequest struct {
	subscriptionID string
	userID         string
	immediate      bool
}

func (r cancelRequest) GetSubscriptionID() string { return r.subscriptionID }
func (r cancelRequest) GetUserID() string         { return r.userID }
func (r cancelRequest) GetImmediate() bool        { return r.immediate }
func (r cancelRequest) GetReason() string         { return "testing" }

type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.EventType
}

func (n *recordingNotifier) Notify(_ context.Context, eventType entity.EventType, _ map[string]interface{}, _ map[string]string) DispatchSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
	return DispatchSummary{EventType: eventType}
}

func (n *recordingNotifier) seen(eventType entity.EventType) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type recordingBackend struct {
	mu    sync.Mutex
	calls map[string][]bool
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{calls: map[string][]bool{}}
}

func (b *recordingBackend) UpdatePremium(_ context.Context, userID string, premium bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[userID] = append(b.calls[userID], premium)
	return nil
}

func (b *recordingBackend) last(userID string) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := b.calls[userID]
	if len(calls) == 0 {
		return false, false
	}
	return calls[len(calls)-1], true
}
