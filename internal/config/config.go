// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"readreward/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort     string
	LogLevel       string
	MigrationsPath string
	AllowedOrigins []string
	DB             db.Config
	Redis          RedisConfig
	Auth           AuthConfig
	Rewards        RewardsConfig
	Stats          StatsConfig
	Payment        PaymentConfig
	RateLimit      RateLimitConfig
}

// RedisConfig locates the notification queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds the bearer token settings.
type AuthConfig struct {
	JWTSecret string
}

// RewardsConfig holds the completion and withdrawal rules.
type RewardsConfig struct {
	MinReadSeconds  int
	WithdrawalFloor decimal.Decimal
}

// StatsConfig holds the aggregation windows and goals.
type StatsConfig struct {
	Location    *time.Location
	WeeklyGoal  int
	MonthlyGoal int
}

// PaymentConfig holds the provider, pricing and reconciliation settings.
type PaymentConfig struct {
	ProviderURL     string
	ProviderAPIKey  string
	PaidPlanPrice   decimal.Decimal
	MerchantKey     string
	MerchantName    string
	MerchantCity    string
	PollInterval    time.Duration
	PollMaxAttempts int
	SweepAge        time.Duration
	SweepInterval   time.Duration
	RetryDelay      time.Duration
}

// RateLimitConfig bounds completion submissions per principal.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LoadConfig loads configuration from environment variables, after reading an
// optional .env file. It returns an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	l := loader{}
	cfg := &AppConfig{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		DB: db.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            l.int("DB_PORT", 5432),
			User:            getEnv("DB_USER", "user"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "readreward"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    l.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    l.int("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: l.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       l.int("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Rewards: RewardsConfig{
			MinReadSeconds:  l.int("MIN_READ_SECONDS", 60),
			WithdrawalFloor: l.decimal("WITHDRAWAL_FLOOR", "50.00"),
		},
		Stats: StatsConfig{
			Location:    l.location("STATS_TIMEZONE", "America/Sao_Paulo"),
			WeeklyGoal:  l.int("STATS_WEEKLY_GOAL", 5),
			MonthlyGoal: l.int("STATS_MONTHLY_GOAL", 20),
		},
		Payment: PaymentConfig{
			ProviderURL:     getEnv("PAYMENT_PROVIDER_URL", "http://localhost:8090"),
			ProviderAPIKey:  os.Getenv("PAYMENT_PROVIDER_API_KEY"),
			PaidPlanPrice:   l.decimal("PAID_PLAN_PRICE", "19.90"),
			MerchantKey:     getEnv("PIX_MERCHANT_KEY", "pagamentos@readreward.com.br"),
			MerchantName:    getEnv("PIX_MERCHANT_NAME", "READREWARD"),
			MerchantCity:    getEnv("PIX_MERCHANT_CITY", "SAO PAULO"),
			PollInterval:    l.duration("PAYMENT_POLL_INTERVAL", 5*time.Second),
			PollMaxAttempts: l.int("PAYMENT_POLL_MAX_ATTEMPTS", 60),
			SweepAge:        l.duration("PAYMENT_SWEEP_AGE", 10*time.Minute),
			SweepInterval:   l.duration("PAYMENT_SWEEP_INTERVAL", time.Minute),
			RetryDelay:      l.duration("PAYMENT_NOTIFICATION_RETRY_DELAY", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   l.float("COMPLETION_RATE_LIMIT_RPS", 1),
			Burst: l.int("COMPLETION_RATE_LIMIT_BURST", 5),
		},
	}
	if l.err != nil {
		return nil, l.err
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Rewards.MinReadSeconds < 0 {
		return nil, fmt.Errorf("invalid MIN_READ_SECONDS: must not be negative")
	}
	if cfg.Stats.WeeklyGoal <= 0 || cfg.Stats.MonthlyGoal <= 0 {
		return nil, fmt.Errorf("invalid stats goals: must be positive")
	}
	if !cfg.Payment.PaidPlanPrice.IsPositive() {
		return nil, fmt.Errorf("invalid PAID_PLAN_PRICE: must be positive")
	}
	if cfg.Payment.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("invalid PAYMENT_POLL_MAX_ATTEMPTS: must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loader parses typed variables and keeps the first error.
type loader struct {
	err error
}

func (l *loader) fail(key string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (l *loader) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) decimal(key, def string) decimal.Decimal {
	v, err := decimal.NewFromString(getEnv(key, def))
	if err != nil {
		l.fail(key, err)
		return decimal.RequireFromString(def)
	}
	return v
}

func (l *loader) location(key, def string) *time.Location {
	loc, err := time.LoadLocation(getEnv(key, def))
	if err != nil {
		l.fail(key, err)
		return time.UTC
	}
	return loc
}
