package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DevGlobalSecret is only accepted as HMAC_SECRET_GLOBAL when APP_DEBUG is enabled.
const DevGlobalSecret = "dev-secret-change-in-production"

type Config struct {
	App           AppConfig
	HTTP          ServerConfig
	GRPC          ServerConfig
	Log           LogConfig
	Gateway       GatewayConfig
	Stripe        StripeConfig
	MercadoPago   MercadoPagoConfig
	Mock          MockConfig
	Webhooks      WebhooksConfig
	EventBus      EventBusConfig
	Backend       BackendConfig
	Subscriptions SubscriptionsConfig
	MySQL         MySQLConfig
	Redis         RedisConfig
	Jobs          JobsConfig
}

type AppConfig struct {
	ServiceName string
	Debug       bool
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

type GatewayConfig struct {
	Active      string
	HTTPTimeout time.Duration
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	PublishableKey            string
	SignatureToleranceSeconds int64
}

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
}

type MockConfig struct {
	WebhookSecret string
}

type WebhooksConfig struct {
	GlobalSecret   string
	Tolerance      time.Duration
	Timeout        time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	MaxConcurrency int
	Async          bool
}

type EventBusConfig struct {
	Enabled      bool
	Transport    string
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	KafkaBrokers []string
	KafkaTopic   string
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type SubscriptionsConfig struct {
	MonthlyPrice decimal.Decimal
	Currency     string
	TrialDays    int
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	DedupeTTL time.Duration
}

type JobsConfig struct {
	SubscriptionChargeInterval time.Duration
	SubscriptionExpireInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	debug := getBoolEnv("APP_DEBUG", false)
	globalSecret := strings.TrimSpace(os.Getenv("HMAC_SECRET_GLOBAL"))
	if globalSecret == "" || globalSecret == DevGlobalSecret {
		if !debug {
			return nil, errors.New("HMAC_SECRET_GLOBAL must be set outside debug mode")
		}
		globalSecret = DevGlobalSecret
	}

	price, err := decimal.NewFromString(getEnv("SUBSCRIPTION_MONTHLY_PRICE", "29.99"))
	if err != nil || !price.IsPositive() {
		return nil, errors.New("SUBSCRIPTION_MONTHLY_PRICE must be a positive decimal")
	}

	transport := strings.ToLower(getEnv("EVENT_BUS_TRANSPORT", "http"))
	if transport != "http" && transport != "kafka" {
		return nil, errors.New("EVENT_BUS_TRANSPORT must be http or kafka")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payment-events"),
			Debug:       debug,
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		Gateway: GatewayConfig{
			Active:      strings.ToLower(getEnv("GATEWAY_ACTIVE", "mock")),
			HTTPTimeout: getSecondsEnv("GATEWAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PublishableKey:            getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			WebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
		},
		Mock: MockConfig{
			WebhookSecret: getEnv("MOCK_WEBHOOK_SECRET", ""),
		},
		Webhooks: WebhooksConfig{
			GlobalSecret:   globalSecret,
			Tolerance:      getSecondsEnv("WEBHOOK_TOLERANCE_SECONDS", 300*time.Second),
			Timeout:        getSecondsEnv("WEBHOOK_TIMEOUT_SECONDS", 30*time.Second),
			MaxRetries:     getIntEnv("WEBHOOK_MAX_RETRIES", 3),
			RetryBase:      getMillisEnv("WEBHOOK_RETRY_BASE_MS", time.Second),
			MaxConcurrency: getIntEnv("WEBHOOK_MAX_CONCURRENCY", 16),
			Async:          getBoolEnv("WEBHOOK_ASYNC", true),
		},
		EventBus: EventBusConfig{
			Enabled:      getBoolEnv("EVENT_BUS_ENABLED", true),
			Transport:    transport,
			URL:          getEnv("EVENT_BUS_URL", "http://n8n:5678/webhook/payment-webhook"),
			Timeout:      getSecondsEnv("EVENT_BUS_TIMEOUT_SECONDS", 10*time.Second),
			MaxRetries:   getIntEnv("EVENT_BUS_MAX_RETRIES", 3),
			RetryDelay:   getMillisEnv("EVENT_BUS_RETRY_DELAY_MS", 2*time.Second),
			KafkaBrokers: getListEnv("EVENT_BUS_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("EVENT_BUS_KAFKA_TOPIC", "payment-events"),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(getEnv("REST_API_URL", "http://backend:8000"), "/"),
			Timeout: getSecondsEnv("REST_API_TIMEOUT_SECONDS", 10*time.Second),
		},
		Subscriptions: SubscriptionsConfig{
			MonthlyPrice: price,
			Currency:     strings.ToUpper(getEnv("SUBSCRIPTION_CURRENCY", "USD")),
			TrialDays:    getIntEnv("SUBSCRIPTION_TRIAL_DAYS", 7),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			DedupeTTL: time.Duration(getIntEnv("EVENT_DEDUPE_TTL_HOURS", 72)) * time.Hour,
		},
		Jobs: JobsConfig{
			SubscriptionChargeInterval: getSecondsEnv("JOBS_SUBSCRIPTION_CHARGE_INTERVAL_SECONDS", time.Hour),
			SubscriptionExpireInterval: getSecondsEnv("JOBS_SUBSCRIPTION_EXPIRE_INTERVAL_SECONDS", time.Hour),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
