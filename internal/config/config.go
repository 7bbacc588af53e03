package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	CoreAPI    CoreAPIConfig
	Gateway    GatewayConfig
	LocalStore LocalStoreConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Email      EmailConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port         string
	ReturnPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CoreAPIConfig points at the catalog/order/booking backend every networked
// step goes through.
type CoreAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// GatewayConfig describes the external payment processor. The processor is
// only ever reached by browser redirect; ReturnURL and CancelURL are where it
// sends the browser back.
type GatewayConfig struct {
	ReturnURL string
	CancelURL string
}

type LocalStoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	MigrationsDir string
	AutoMigrate   bool
	SnapshotTTL   time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	MockMode bool
	Enabled  bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	From         string
}

type AuthConfig struct {
	RefreshURL string
	OIDCIssuer string
	// ExpiryBuffer is subtracted from the access token's exp claim when
	// deciding whether to refresh ahead of time.
	ExpiryBuffer time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReturnPort:   getEnv("RETURN_PORT", ":8081"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		CoreAPI: CoreAPIConfig{
			BaseURL: getEnv("CORE_API_URL", "http://localhost:9090"),
			Timeout: time.Duration(getEnvInt("CORE_API_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Gateway: GatewayConfig{
			ReturnURL: getEnv("PAYMENT_RETURN_URL", "http://localhost:8081/payment/return"),
			CancelURL: getEnv("PAYMENT_CANCEL_URL", "http://localhost:8081/payment/cancel"),
		},
		LocalStore: LocalStoreConfig{
			Driver:        getEnv("LOCAL_STORE_DRIVER", "sqlite"),
			SQLitePath:    getEnv("LOCAL_STORE_PATH", "storefront.db"),
			PostgresDSN:   getEnv("LOCAL_STORE_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
			SnapshotTTL:   time.Duration(getEnvInt("SNAPSHOT_TTL_MINUTES", 30)) * time.Minute,
			SweepInterval: time.Duration(getEnvInt("SNAPSHOT_SWEEP_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:    getEnv("KAFKA_TOPIC_BOOKINGS", "storefront.bookings"),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Enabled:  getEnvBool("KAFKA_ENABLED", false),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", "tickets@storefront.local"),
		},
		Auth: AuthConfig{
			RefreshURL:   getEnv("AUTH_REFRESH_URL", "http://localhost:9090/auth/refresh"),
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			ExpiryBuffer: time.Duration(getEnvInt("TOKEN_EXPIRY_BUFFER_SECONDS", 60)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
