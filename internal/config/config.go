package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Email    EmailConfig
	Offers   OfferConfig
	AIChat   AIChatConfig
	Tickets  TicketConfig
}

type TicketConfig struct {
	// QRSecret keys the AES encryption of QR payloads.
	QRSecret string
	FontPath string
}

type ServerConfig struct {
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
	DB   int
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// PlatformFeePercent is the application fee taken on Connect payments.
	PlatformFeePercent int
}

type AuthConfig struct {
	OIDCIssuer string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	Enabled      bool
}

type OfferConfig struct {
	// Duration a waiting-list offer stays reserved before expiring.
	Duration time.Duration
	// SweepInterval bounds how stale an entry can get if its Redis timer
	// key is lost.
	SweepInterval time.Duration
}

type AIChatConfig struct {
	CompletionURL string
	APIKey        string
	Model         string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			BaseURL:      getEnv("BASE_URL", "http://localhost:3000"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PlatformFeePercent: getEnvInt("PLATFORM_FEE_PERCENT", 2),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("SMTP_FROM", "no-reply@tickethub.local"),
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
		},
		Offers: OfferConfig{
			Duration:      time.Duration(getEnvInt("OFFER_DURATION_MINUTES", 15)) * time.Minute,
			SweepInterval: time.Duration(getEnvInt("OFFER_SWEEP_MINUTES", 5)) * time.Minute,
		},
		Tickets: TicketConfig{
			QRSecret: getEnv("QR_SECRET", "tickethub-dev-secret"),
			FontPath: getEnv("TICKET_FONT_PATH", "./fonts/DejaVuSans.ttf"),
		},
		AIChat: AIChatConfig{
			CompletionURL: getEnv("AI_COMPLETION_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:        getEnv("AI_API_KEY", ""),
			Model:         getEnv("AI_MODEL", "gpt-4o-mini"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
