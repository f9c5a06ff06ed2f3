package controller

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
)

const testSecret = "controller-secret"

type fixture struct {
	registry      *provider.Registry
	partners      *service.PartnerService
	dispatcher    *service.Dispatcher
	bus           *service.EventBusForwarder
	webhooks      *service.WebhookService
	payments      *service.PaymentService
	subscriptions *service.SubscriptionService
	discounts     *service.DiscountService
	queue         *service.QueueService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := provider.NewRegistry(provider.MockName, provider.NewMockGateway(), provider.NewStripeGateway(provider.StripeConfig{}))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	partners := service.NewPartnerService(repository.NewMemoryPartnerStore())
	dispatcher := service.NewDispatcher(partners, service.DispatcherConfig{Timeout: time.Second, MaxRetries: 1, RetryBase: time.Millisecond})
	bus := service.NewEventBusForwarder(nil, service.EventBusConfig{}, nil)

	subscriptions := service.NewSubscriptionService(
		repository.NewMemorySubscriptionStore(),
		registry.Active(),
		service.NewBackendClient("", time.Second),
		dispatcher,
		service.SubscriptionConfig{TrialDays: 7},
	)
	discounts := service.NewDiscountService(repository.NewMemoryDiscountStore(), subscriptions)
	subscriptions.SetDiscounts(discounts)

	return &fixture{
		registry:   registry,
		partners:   partners,
		dispatcher: dispatcher,
		bus:        bus,
		webhooks: service.NewWebhookService(
			service.WebhookConfig{GlobalSecret: testSecret},
			registry,
			partners,
			repository.NewMemoryDedupe(time.Hour),
			repository.NewMemoryEventLog(50),
			dispatcher,
			bus,
		),
		payments:      service.NewPaymentService(registry),
		subscriptions: subscriptions,
		discounts:     discounts,
		queue:         service.NewQueueService(subscriptions),
	}
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withParams(ctx echo.Context, pairs ...string) echo.Context {
	var names, values []string
	for i := 0; i+1 < len(pairs); i += 2 {
		names = append(names, pairs[i])
		values = append(values, pairs[i+1])
	}
	ctx.SetParamNames(names...)
	ctx.SetParamValues(values...)
	return ctx
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshal failed: %v body=%s", err, rec.Body.String())
	}
}
