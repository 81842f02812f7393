package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultPort            = "9000"
	defaultCountryCode     = "+254"
	defaultCurrencyCode    = "KES"
	defaultSwapWindow      = 3
	defaultProviderTimeout = 10 * time.Second
	defaultPendingTTL      = 24 * time.Hour
	defaultResolvedTTL     = 72 * time.Hour

	SandboxUsername = "sandbox"

	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Port     string
	LogLevel string

	Username string `validate:"required"`
	APIKey   string `validate:"required"`

	InsightsURL string `validate:"omitempty,url"`
	AirtimeURL  string `validate:"omitempty,url"`

	CountryCode  string `validate:"required,startswith=+"`
	CurrencyCode string `validate:"required,len=3"`

	SwapWindowMonths    int           `validate:"gt=0"`
	ProviderTimeout     time.Duration `validate:"gt=0"`
	PendingTTL          time.Duration `validate:"gt=0"`
	ResolvedTTL         time.Duration `validate:"gt=0"`
	MaxDisburseAttempts int           `validate:"gt=0"`

	NotFoundRetries int `validate:"gte=0"`
	NotFoundBackoff time.Duration

	CallbackToken string

	RateLimitMax    int
	RateLimitWindow time.Duration

	StoreBackend string `validate:"oneof=memory redis postgres"`
	RedisAddr    string `validate:"required_if=StoreBackend redis"`
	RedisPool    int
	PostgresDSN  string `validate:"required_if=StoreBackend postgres"`

	NatsURL           string
	NatsMaxDeliver    int
	NatsMaxAckPending int
	RetryDelay        time.Duration
	StaleAfter        time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		Username: strings.TrimSpace(os.Getenv("AT_USERNAME")),
		APIKey:   strings.TrimSpace(os.Getenv("AT_API_KEY")),

		InsightsURL: os.Getenv("AT_INSIGHTS_URL"),
		AirtimeURL:  os.Getenv("AT_AIRTIME_URL"),

		CountryCode:  getEnv("COUNTRY_CODE", defaultCountryCode),
		CurrencyCode: strings.ToUpper(getEnv("CURRENCY_CODE", defaultCurrencyCode)),

		SwapWindowMonths:    envInt("SIM_SWAP_WINDOW_MONTHS", defaultSwapWindow),
		ProviderTimeout:     envDuration("PROVIDER_TIMEOUT", defaultProviderTimeout),
		PendingTTL:          envDuration("PENDING_TTL", defaultPendingTTL),
		ResolvedTTL:         envDuration("RESOLVED_TTL", defaultResolvedTTL),
		MaxDisburseAttempts: envInt("MAX_DISBURSE_ATTEMPTS", 5),

		NotFoundRetries: envInt("CALLBACK_NOT_FOUND_RETRIES", 3),
		NotFoundBackoff: envDuration("CALLBACK_NOT_FOUND_BACKOFF", 200*time.Millisecond),

		CallbackToken: os.Getenv("CALLBACK_TOKEN"),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		RedisAddr:    os.Getenv("REDIS_HOST"),
		RedisPool:    envInt("REDIS_POOL_SIZE", 20),
		PostgresDSN:  os.Getenv("DATABASE_URL"),

		NatsURL:           os.Getenv("NATS_URL"),
		NatsMaxDeliver:    envInt("NATS_MAX_DELIVER", 5),
		NatsMaxAckPending: envInt("NATS_MAX_ACK_PENDING", 40),
		RetryDelay:        envDuration("DISBURSE_RETRY_DELAY", 30*time.Second),
		StaleAfter:        envDuration("DISBURSE_STALE_AFTER", time.Minute),
	}

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return nil, err
	}
	return cfg, nil
}

// Sandbox reports whether requests should go to the provider's sandbox hosts.
func (c *Config) Sandbox() bool {
	return c.Username == SandboxUsername
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envDuration accepts Go duration strings ("30s") or plain seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
