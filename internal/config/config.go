package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Redis     RedisConfig
	Cart      CartConfig
	Stripe    StripeConfig
	Resend    ResendConfig
	R2        R2Config
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	Env            string   `env:"ENV" envDefault:"development"`
	PublicURL      string   `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"` // Full database URL
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME" envDefault:"activity_storefront"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

type SessionConfig struct {
	Secret string `env:"SESSION_SECRET" envDefault:"your-secret-key-change-in-production"`
	MaxAge int    `env:"SESSION_MAX_AGE" envDefault:"604800"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// CartConfig selects where carts are persisted: session, redis or memory.
// Session carts are files under SessionDir (the OS temp dir when empty).
type CartConfig struct {
	Storage    string        `env:"CART_STORAGE" envDefault:"session"`
	TTL        time.Duration `env:"CART_TTL" envDefault:"168h"`
	SessionDir string        `env:"CART_SESSION_DIR"`
}

type StripeConfig struct {
	SecretKey      string `env:"STRIPE_SECRET_KEY"`
	PublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency       string `env:"STRIPE_CURRENCY" envDefault:"aud"`
	BaseURL        string `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
}

type ResendConfig struct {
	APIKey    string `env:"RESEND_API_KEY"`
	FromEmail string `env:"RESEND_FROM_EMAIL" envDefault:"bookings@example.com"`
	FromName  string `env:"RESEND_FROM_NAME" envDefault:"Activity Bookings"`
}

type R2Config struct {
	AccountID       string `env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	BucketName      string `env:"R2_BUCKET_NAME" envDefault:"product-images"`
	PublicURL       string `env:"R2_PUBLIC_URL"`
	Region          string `env:"R2_REGION" envDefault:"auto"`
	Endpoint        string `env:"R2_ENDPOINT"`
	LocalDir        string `env:"UPLOAD_DIR" envDefault:"uploads"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me-jwt-secret"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"12h"`
}

type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"activity-storefront"`
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Database.URL != "" {
		config.Database = parseDatabaseURL(config.Database.URL)
	}

	switch config.Cart.Storage {
	case "session", "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid CART_STORAGE %q: want session, redis or memory", config.Cart.Storage)
	}
	if config.Cart.Storage == "redis" && config.Redis.URL == "" {
		return nil, fmt.Errorf("CART_STORAGE=redis requires REDIS_URL")
	}

	return config, nil
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432 // Default PostgreSQL port
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}
