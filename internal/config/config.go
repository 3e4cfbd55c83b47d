package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tessera/internal/cache"
	"tessera/internal/database"
	"tessera/internal/external"
	"tessera/internal/messaging"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	ProviderStripe  = "stripe"
	ProviderGateway = "gateway"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Performance monitoring
	PprofEnabled   bool
	PprofPort      string
	MetricsEnabled bool

	Database      database.Config
	Inventory     InventoryConfig
	NATS          NATSConfig
	Payment       PaymentConfig
	Auth          AuthConfig
	Redis         cache.Config
	RateLimit     cache.RateLimitConfig
	Elasticsearch ElasticsearchConfig
	Sweeper       SweeperConfig
}

// InventoryConfig управляет удержанием мест
type InventoryConfig struct {
	Backend         string
	HoldDuration    time.Duration
	HoldMaxDuration time.Duration
	InstanceID      string
	Currency        string
	// DirectPurchase разрешает продажу удержанных мест без платежа
	DirectPurchase bool
	Seed           SeedConfig
}

// SeedConfig заполняет memory backend местами при старте
type SeedConfig struct {
	EventID       int64
	Rows          int
	SeatsPerRow   int
	PremiumRows   int
	StandardPrice string
	PremiumPrice  string
}

type NATSConfig struct {
	messaging.Config
	Enabled bool
}

type PaymentConfig struct {
	Provider        string
	StripeSecretKey string
	Gateway         external.PaymentConfig
}

type AuthConfig struct {
	JWTSecret string
}

// SweeperConfig настраивает фоновую очистку просроченных удержаний
type SweeperConfig struct {
	Interval time.Duration
}

// Load загружает конфигурацию из .env и переменных окружения
func Load() *Config {
	// .env необязателен; переменные окружения имеют приоритет
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		// Performance monitoring
		PprofEnabled:   getEnvBool("PPROF_ENABLED", false),
		PprofPort:      getEnv("PPROF_PORT", "6060"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "tessera"),
			Password:           getEnv("DB_PASSWORD", "tessera"),
			DBName:             getEnv("DB_NAME", "tessera"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
			LockTimeout:        getEnvDuration("LOCK_TIMEOUT", 5*time.Second),
			Retry: database.RetryPolicy{
				MaxAttempts: getEnvInt("DB_RETRY_ATTEMPTS", 3),
				Backoff:     getEnvDuration("DB_RETRY_BACKOFF", 100*time.Millisecond),
			},
		},

		Inventory: InventoryConfig{
			Backend:         strings.ToLower(getEnv("INVENTORY_BACKEND", BackendPostgres)),
			HoldDuration:    getEnvDuration("HOLD_DURATION", 10*time.Minute),
			HoldMaxDuration: getEnvDuration("HOLD_MAX_DURATION", 30*time.Minute),
			InstanceID:      getEnv("INSTANCE_ID", ""),
			Currency:        strings.ToLower(getEnv("CURRENCY", "usd")),
			DirectPurchase:  getEnvBool("DIRECT_PURCHASE_ENABLED", false),
			Seed: SeedConfig{
				EventID:       int64(getEnvInt("SEED_EVENT_ID", 0)),
				Rows:          getEnvInt("SEED_ROWS", 10),
				SeatsPerRow:   getEnvInt("SEED_SEATS_PER_ROW", 20),
				PremiumRows:   getEnvInt("SEED_PREMIUM_ROWS", 2),
				StandardPrice: getEnv("SEED_STANDARD_PRICE", "10.00"),
				PremiumPrice:  getEnv("SEED_PREMIUM_PRICE", "25.00"),
			},
		},

		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			Config: messaging.Config{
				URL:       getEnv("NATS_URL", "nats://localhost:4222"),
				ClusterID: getEnv("NATS_CLUSTER_ID", "tessera"),
				ClientID:  getEnv("NATS_CLIENT_ID", "tessera-api"),
			},
		},

		Payment: PaymentConfig{
			Provider:        strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderStripe)),
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Gateway: external.PaymentConfig{
				BaseURL:  getEnv("PAYMENT_GATEWAY_URL", "http://localhost:8090/payment-provider/common"),
				TeamSlug: getEnv("PAYMENT_TEAM_SLUG", ""),
				Password: getEnv("PAYMENT_PASSWORD", ""),
				Timeout:  time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
			},
		},

		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},

		Redis: cache.Config{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		RateLimit: cache.RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			Prefix:         getEnv("RATE_LIMIT_PREFIX", "tessera:rl"),
			Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 20),
			RefillTokens:   getEnvInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: getEnvDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
			TTL:            getEnvDuration("RATE_LIMIT_TTL", 10*time.Minute),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Sweeper: SweeperConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration принимает "90s", "10m" или число секунд
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
