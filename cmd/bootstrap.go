package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/config"
)

const eventLogCapacity = 500

// services holds every wired component of one process.
type services struct {
	registry      *provider.Registry
	partners      *service.PartnerService
	dispatcher    *service.Dispatcher
	bus           *service.EventBusForwarder
	webhooks      *service.WebhookService
	payments      *service.PaymentService
	subscriptions *service.SubscriptionService
	discounts     *service.DiscountService
	queue         *service.QueueService
	backend       *service.BackendClient
}

type partnerStore interface {
	Create(ctx context.Context, partner *entity.Partner) error
	Update(ctx context.Context, partner *entity.Partner) error
	FindByID(ctx context.Context, id string) (*entity.Partner, error)
	FindByName(ctx context.Context, name string) (*entity.Partner, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Partner, error)
	Delete(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, id string, success bool, at time.Time) error
}

type eventLogStore interface {
	Record(ctx context.Context, event *entity.ProcessedEvent) error
	Recent(ctx context.Context, limit int) ([]entity.ProcessedEvent, error)
}

type dedupeStore interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustCreateServices() (*config.Config, *services, func()) {
	cfg := mustLoadConfig()
	var closers []func()

	var (
		partnerRepo partnerStore  = repository.NewMemoryPartnerStore()
		eventLog    eventLogStore = repository.NewMemoryEventLog(eventLogCapacity)
		dedupe      dedupeStore   = repository.NewMemoryDedupe(cfg.Redis.DedupeTTL)
	)

	if cfg.MySQL.DSN != "" {
		db := mustOpenMySQL(cfg.MySQL)
		partnerRepo = repository.NewPartnerRepository(db)
		eventLog = repository.NewEventLogRepository(db)
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		})
	} else {
		logrus.Warn("MYSQL_DSN is empty, partners and processed events are kept in memory")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			logrus.WithError(err).Fatal("Failed to ping redis")
		}
		dedupe = repository.NewRedisDedupe(client, cfg.Redis.DedupeTTL)
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis")
			}
		})
	}

	registry, err := provider.NewRegistry(
		cfg.Gateway.Active,
		provider.NewMockGateway(),
		provider.NewStripeGateway(provider.StripeConfig{
			SecretKey:                 cfg.Stripe.SecretKey,
			WebhookSecret:             cfg.Stripe.WebhookSecret,
			SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
			HTTPTimeout:               cfg.Gateway.HTTPTimeout,
		}),
		provider.NewMercadoPagoGateway(provider.MercadoPagoConfig{
			AccessToken:   cfg.MercadoPago.AccessToken,
			WebhookSecret: cfg.MercadoPago.WebhookSecret,
			HTTPTimeout:   cfg.Gateway.HTTPTimeout,
		}),
	)
	if err != nil {
		logrus.WithError(err).WithField("gateway", cfg.Gateway.Active).Fatal("Failed to resolve active gateway")
	}

	partners := service.NewPartnerService(partnerRepo)
	dispatcher := service.NewDispatcher(partners, service.DispatcherConfig{
		Timeout:        cfg.Webhooks.Timeout,
		MaxRetries:     cfg.Webhooks.MaxRetries,
		RetryBase:      cfg.Webhooks.RetryBase,
		MaxConcurrency: cfg.Webhooks.MaxConcurrency,
	})

	transport, closeTransport := newBusTransport(cfg.EventBus)
	if closeTransport != nil {
		closers = append(closers, closeTransport)
	}
	bus := service.NewEventBusForwarder(transport, service.EventBusConfig{
		Enabled:    cfg.EventBus.Enabled,
		MaxRetries: cfg.EventBus.MaxRetries,
		RetryDelay: cfg.EventBus.RetryDelay,
	}, nil)

	backend := service.NewBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)
	subscriptions := service.NewSubscriptionService(
		repository.NewMemorySubscriptionStore(),
		registry.Active(),
		backend,
		dispatcher,
		service.SubscriptionConfig{
			MonthlyPrice: cfg.Subscriptions.MonthlyPrice,
			Currency:     cfg.Subscriptions.Currency,
			TrialDays:    cfg.Subscriptions.TrialDays,
		},
	)
	discounts := service.NewDiscountService(repository.NewMemoryDiscountStore(), subscriptions)
	subscriptions.SetDiscounts(discounts)

	webhooks := service.NewWebhookService(
		service.WebhookConfig{
			ProviderSecrets: map[string]string{
				provider.StripeName:      cfg.Stripe.WebhookSecret,
				provider.MercadoPagoName: cfg.MercadoPago.WebhookSecret,
				provider.MockName:        cfg.Mock.WebhookSecret,
			},
			GlobalSecret: cfg.Webhooks.GlobalSecret,
			Tolerance:    cfg.Webhooks.Tolerance,
			Async:        cfg.Webhooks.Async,
		},
		registry,
		partners,
		dedupe,
		eventLog,
		dispatcher,
		bus,
	)
	webhooks.RegisterHandler(entity.EventAnimalAdopted, discounts.HandleAdoptionEvent)
	webhooks.RegisterHandler(entity.EventAdoptionCompleted, discounts.HandleAdoptionEvent)
	webhooks.RegisterFallback(entity.EventPaymentSuccess, subscriptions.RenewFromPayment)
	bus.SetFallback(webhooks.RunFallback)

	svc := &services{
		registry:      registry,
		partners:      partners,
		dispatcher:    dispatcher,
		bus:           bus,
		webhooks:      webhooks,
		payments:      service.NewPaymentService(registry),
		subscriptions: subscriptions,
		discounts:     discounts,
		queue:         service.NewQueueService(subscriptions),
		backend:       backend,
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return cfg, svc, cleanup
}

func mustOpenMySQL(cfg config.MySQLConfig) *sql.DB {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

// newBusTransport returns nil when the bus is disabled.
func newBusTransport(cfg config.EventBusConfig) (service.BusTransport, func()) {
	if !cfg.Enabled {
		logrus.Info("Event bus disabled")
		return nil, nil
	}

	if cfg.Transport == "kafka" {
		if len(cfg.KafkaBrokers) == 0 {
			logrus.Fatal("EVENT_BUS_KAFKA_BROKERS is required for the kafka transport")
		}
		kafkaTransport := service.NewKafkaBusTransport(cfg.KafkaBrokers, cfg.KafkaTopic)
		return kafkaTransport, func() {
			if err := kafkaTransport.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close kafka writer")
			}
		}
	}
	return service.NewHTTPBusTransport(cfg.URL, cfg.Timeout), nil
}
