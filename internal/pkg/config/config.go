package config

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/env"
	"github.com/spf13/cast"
)

// Config is the complete runtime configuration. Secrets have no defaults.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Gateway  GatewayConfig
	Auth     AuthConfig
	Poller   PollerConfig
	Kafka    KafkaConfig
	Metrics  MetricsConfig
	OrderID  OrderIDConfig
}

type AppConfig struct {
	Env          string
	Host         string
	Port         string
	PublicDomain string
	RateLimit    int
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

type GatewayConfig struct {
	Name            string
	BaseURL         string
	APIKey          string
	PGSecret        string
	DefaultSchoolID string
	CallbackURL     string
	Timeout         time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type PollerConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	WebhookWindow time.Duration
	SweepInterval time.Duration
	MaxAge        time.Duration
	JobMaxRetries int
	Workers       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MetricsConfig struct {
	Username string
	Password string
}

type OrderIDConfig struct {
	MachineID uint16
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:          env.GetEnv("APP_ENV", "prod"),
			Host:         env.GetEnv("APP_HOST", "0.0.0.0"),
			Port:         env.GetEnv("APP_PORT", "4000"),
			PublicDomain: strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
			RateLimit:    cast.ToInt(env.GetEnv("API_RATE_LIMIT", "120")),
		},
		Database: DatabaseConfig{
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			Name:            env.GetEnv("GATEWAY_NAME", "pg"),
			BaseURL:         strings.TrimRight(strings.TrimSpace(env.GetEnv("GATEWAY_BASE_URL", "")), "/"),
			APIKey:          strings.TrimSpace(env.GetEnv("GATEWAY_API_KEY", "")),
			PGSecret:        strings.TrimSpace(env.GetEnv("GATEWAY_PG_SECRET", "")),
			DefaultSchoolID: strings.TrimSpace(env.GetEnv("GATEWAY_SCHOOL_ID", "")),
			CallbackURL:     strings.TrimSpace(env.GetEnv("GATEWAY_CALLBACK_URL", "")),
			Timeout:         duration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: env.GetEnv("JWT_SECRET", ""),
		},
		Poller: PollerConfig{
			MaxRetries:    cast.ToInt(env.GetEnv("POLL_MAX_RETRIES", "15")),
			RetryDelay:    duration("POLL_RETRY_DELAY", 3*time.Second),
			WebhookWindow: duration("WEBHOOK_WINDOW", 5*time.Minute),
			SweepInterval: duration("POLL_SWEEP_INTERVAL", time.Minute),
			MaxAge:        duration("POLL_MAX_AGE", 24*time.Hour),
			JobMaxRetries: cast.ToInt(env.GetEnv("POLL_JOB_MAX_RETRIES", "3")),
			Workers:       cast.ToInt(env.GetEnv("JOB_QUEUE_WORKERS", "3")),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(env.GetEnv("KAFKA_BROKERS", "")),
			Topic:   env.GetEnv("KAFKA_STATUS_TOPIC", "payment.status.changed"),
		},
		Metrics: MetricsConfig{
			Username: env.GetEnv("METRICS_USER", ""),
			Password: env.GetEnv("METRICS_PASSWORD", ""),
		},
		OrderID: OrderIDConfig{
			MachineID: cast.ToUint16(env.GetEnv("ORDER_ID_MACHINE_ID", "1")),
		},
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Gateway.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if c.Gateway.APIKey == "" {
		missing = append(missing, "GATEWAY_API_KEY")
	}
	if c.Gateway.PGSecret == "" {
		missing = append(missing, "GATEWAY_PG_SECRET")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Poller.MaxRetries <= 0 {
		missing = append(missing, "POLL_MAX_RETRIES (must be > 0)")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

func duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
