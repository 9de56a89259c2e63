package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Catalog  CatalogConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host        string
	Port        int
	ServiceName string
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	Migrate         bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds the admin API key protecting /api/admin routes.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for menu catalogue files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "catalog/")
}

// CatalogConfig lists the menu catalogue files imported at start-up.
type CatalogConfig struct {
	Sources []string
}

// RedisConfig enables the Redis change broker when URL is set.
type RedisConfig struct {
	URL     string
	Channel string
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// AMQPConfig enables kitchen notifications when URL is set.
type AMQPConfig struct {
	URL      string
	Queue    string
	PoolSize int
}

// Enabled reports whether RabbitMQ is configured.
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// PaymentConfig holds the PayTech mobile-money gateway credentials.
type PaymentConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Env       string // "test" or "prod"
	Currency  string
	IPNURL    string
	CancelURL string
	Timeout   time.Duration
}

// Configured reports whether gateway credentials are present.
func (c PaymentConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// CheckoutConfig holds storefront checkout settings.
type CheckoutConfig struct {
	TaxRate        decimal.Decimal
	WhatsAppNumber string
	StatusPageURL  string
	TimeZone       string
}

// Location resolves the restaurant time zone.
func (c CheckoutConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			ServiceName: getEnv("SERVICE_NAME", "b-resto-api"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "bresto"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			Migrate:         getEnvAsBool("DB_MIGRATE", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "eu-west-1"),
			Prefix:  getEnv("S3_PREFIX", "catalog/"),
		},
		Catalog: CatalogConfig{
			Sources: getEnvAsList("CATALOG_SOURCES", nil),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "bresto:orders:changes"),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Queue:    getEnv("AMQP_QUEUE", "orders.placed"),
			PoolSize: getEnvAsInt("AMQP_POOL_SIZE", 4),
		},
		Payment: PaymentConfig{
			BaseURL:   getEnv("PAYTECH_BASE_URL", "https://paytech.sn/api"),
			APIKey:    getEnv("PAYTECH_API_KEY", ""),
			APISecret: getEnv("PAYTECH_API_SECRET", ""),
			Env:       getEnv("PAYTECH_ENV", "test"),
			Currency:  getEnv("PAYTECH_CURRENCY", "XOF"),
			IPNURL:    getEnv("PAYTECH_IPN_URL", ""),
			CancelURL: getEnv("PAYTECH_CANCEL_URL", ""),
			Timeout:   time.Duration(getEnvAsInt("PAYTECH_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Checkout: CheckoutConfig{
			TaxRate:        getEnvAsDecimal("TAX_RATE", decimal.RequireFromString("0.18")),
			WhatsAppNumber: getEnv("WHATSAPP_NUMBER", "221766657278"),
			StatusPageURL:  getEnv("STATUS_PAGE_URL", "http://localhost:3000/order-confirmation"),
			TimeZone:       getEnv("TIMEZONE", "Africa/Dakar"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.AMQP.Enabled() && c.AMQP.PoolSize < 1 {
		return fmt.Errorf("AMQP pool size must be at least 1")
	}

	if (c.Payment.APIKey == "") != (c.Payment.APISecret == "") {
		return fmt.Errorf("PayTech API key and secret must be set together")
	}

	if c.Payment.Env != "test" && c.Payment.Env != "prod" {
		return fmt.Errorf("invalid PayTech env: %s (must be test or prod)", c.Payment.Env)
	}

	if c.Checkout.TaxRate.IsNegative() || c.Checkout.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid tax rate: %s (must be between 0 and 1)", c.Checkout.TaxRate)
	}

	if c.Checkout.StatusPageURL == "" {
		return fmt.Errorf("status page URL is required")
	}

	if _, err := c.Checkout.Location(); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Checkout.TimeZone, err)
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDecimal retrieves an environment variable as a decimal or returns a default value.
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
