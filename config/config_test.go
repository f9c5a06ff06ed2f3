package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresGlobalSecretOutsideDebug(t *testing.T) {
	unsetEnv(t, "APP_DEBUG")
	unsetEnv(t, "HMAC_SECRET_GLOBAL")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing HMAC_SECRET_GLOBAL")
	}

	setEnv(t, "HMAC_SECRET_GLOBAL", DevGlobalSecret)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for placeholder HMAC_SECRET_GLOBAL")
	}
}

func TestLoadDebugAcceptsPlaceholderSecret(t *testing.T) {
	setEnv(t, "APP_DEBUG", "true")
	unsetEnv(t, "HMAC_SECRET_GLOBAL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Webhooks.GlobalSecret != DevGlobalSecret {
		t.Fatalf("unexpected global secret: %s", cfg.Webhooks.GlobalSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "HMAC_SECRET_GLOBAL", "prod-secret")
	for _, key := range []string{"APP_DEBUG", "GATEWAY_ACTIVE", "EVENT_BUS_TRANSPORT", "EVENT_BUS_KAFKA_BROKERS", "MYSQL_DSN", "REDIS_ADDR", "SUBSCRIPTION_MONTHLY_PRICE", "WEBHOOK_RETRY_BASE_MS"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.App.ServiceName != "payment-events" || cfg.Gateway.Active != "mock" {
		t.Fatalf("unexpected app config: %+v %+v", cfg.App, cfg.Gateway)
	}
	if cfg.EventBus.Transport != "http" || !cfg.EventBus.Enabled || cfg.EventBus.KafkaBrokers != nil {
		t.Fatalf("unexpected bus config: %+v", cfg.EventBus)
	}
	if cfg.MySQL.DSN != "" || cfg.Redis.Addr != "" || cfg.Redis.DedupeTTL != 72*time.Hour {
		t.Fatalf("unexpected storage config: %+v %+v", cfg.MySQL, cfg.Redis)
	}
	if cfg.Subscriptions.MonthlyPrice.String() != "29.99" || cfg.Subscriptions.TrialDays != 7 {
		t.Fatalf("unexpected subscription config: %+v", cfg.Subscriptions)
	}
	if cfg.Webhooks.RetryBase != time.Second || cfg.Webhooks.MaxRetries != 3 {
		t.Fatalf("unexpected webhook config: %+v", cfg.Webhooks)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "HMAC_SECRET_GLOBAL", "prod-secret")
	setEnv(t, "APP_SERVICE_NAME", "events-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "GATEWAY_ACTIVE", "Stripe")
	setEnv(t, "EVENT_BUS_TRANSPORT", "kafka")
	setEnv(t, "EVENT_BUS_KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	setEnv(t, "EVENT_BUS_RETRY_DELAY_MS", "250")
	setEnv(t, "REST_API_URL", "http://backend:8000/")
	setEnv(t, "SUBSCRIPTION_MONTHLY_PRICE", "19.50")
	setEnv(t, "SUBSCRIPTION_CURRENCY", "ars")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "EVENT_DEDUPE_TTL_HOURS", "1")
	setEnv(t, "WEBHOOK_ASYNC", "false")
	setEnv(t, "JOBS_SUBSCRIPTION_CHARGE_INTERVAL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "events-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Gateway.Active != "stripe" {
		t.Fatalf("unexpected gateway: %s", cfg.Gateway.Active)
	}
	if len(cfg.EventBus.KafkaBrokers) != 2 || cfg.EventBus.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.EventBus.KafkaBrokers)
	}
	if cfg.EventBus.RetryDelay != 250*time.Millisecond {
		t.Fatalf("unexpected retry delay: %v", cfg.EventBus.RetryDelay)
	}
	if cfg.Backend.URL != "http://backend:8000" {
		t.Fatalf("unexpected backend url: %s", cfg.Backend.URL)
	}
	if cfg.Subscriptions.MonthlyPrice.StringFixed(2) != "19.50" || cfg.Subscriptions.Currency != "ARS" {
		t.Fatalf("unexpected subscription config: %+v", cfg.Subscriptions)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.Redis.DedupeTTL != time.Hour || cfg.Webhooks.Async {
		t.Fatalf("unexpected config: %+v %+v", cfg.Redis, cfg.Webhooks)
	}
	if cfg.Jobs.SubscriptionChargeInterval != time.Minute {
		t.Fatalf("unexpected charge interval: %v", cfg.Jobs.SubscriptionChargeInterval)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setEnv(t, "HMAC_SECRET_GLOBAL", "prod-secret")
	setEnv(t, "SUBSCRIPTION_MONTHLY_PRICE", "free")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid price")
	}

	setEnv(t, "SUBSCRIPTION_MONTHLY_PRICE", "29.99")
	setEnv(t, "EVENT_BUS_TRANSPORT", "amqp")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown bus transport")
	}
}
