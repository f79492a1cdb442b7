package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// Config is the resolved runtime configuration: defaults, then the YAML file, then env.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	MaxDBConns   int32

	JWTPublicKeyPEM string
	JWTHMACSecret   string
	JWTIssuer       string
	JWTAudience     string

	GatewayBaseURL          string
	GatewayClientID         string
	GatewayClientSecret     string
	GatewayCallbackURL      string
	GatewayResultURL        string
	GatewayTimeout          time.Duration
	GatewayRateLimit        float64
	GatewayRateBurst        int
	GatewayTokenRefreshSkew time.Duration

	Commission domain.CommissionSchedule

	// IdempotencyTTL bounds the Redis gate only. When Redis is down the service fails open
	// and the database conditional updates alone prevent double application.
	IdempotencyTTL time.Duration
	// IdempotencyLeaseTTL caps how long an in-flight claim blocks redeliveries when the
	// process dies or the release fails.
	IdempotencyLeaseTTL time.Duration

	ReconcileInterval  time.Duration
	ReconcileAfter     time.Duration
	ReconcileBatchSize int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

type commissionEntry struct {
	EffectiveFrom string `yaml:"effective_from"`
	Rate          string `yaml:"rate"`
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Auth struct {
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"auth"`
	Gateway struct {
		BaseURL     string  `yaml:"base_url"`
		CallbackURL string  `yaml:"callback_url"`
		ResultURL   string  `yaml:"result_url"`
		Timeout     string  `yaml:"timeout"`
		RateLimit   float64 `yaml:"rate_limit"`
		RateBurst   int     `yaml:"rate_burst"`
	} `yaml:"gateway"`
	Commission struct {
		Schedule []commissionEntry `yaml:"schedule"`
	} `yaml:"commission"`
	Reconcile struct {
		Interval  string `yaml:"interval"`
		After     string `yaml:"after"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"reconcile"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "escrow-service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		MaxDBConns:              20,
		GatewayTimeout:          30 * time.Second,
		GatewayRateBurst:        5,
		GatewayTokenRefreshSkew: time.Minute,
		IdempotencyTTL:          24 * time.Hour,
		IdempotencyLeaseTTL:     2 * time.Minute,
		ReconcileInterval:       time.Minute,
		ReconcileAfter:          5 * time.Minute,
		ReconcileBatchSize:      50,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxClaimTTL:          30 * time.Second,
		OutboxMaxRetries:        5,
	}
	schedule := []commissionEntry{{Rate: "0.10"}}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = firstNonEmpty(f.Dependencies.PostgresURL, cfg.DatabaseURL)
		cfg.RedisURL = firstNonEmpty(f.Dependencies.RedisURL, cfg.RedisURL)
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		cfg.JWTIssuer = firstNonEmpty(f.Auth.Issuer, cfg.JWTIssuer)
		cfg.JWTAudience = firstNonEmpty(f.Auth.Audience, cfg.JWTAudience)
		cfg.GatewayBaseURL = firstNonEmpty(f.Gateway.BaseURL, cfg.GatewayBaseURL)
		cfg.GatewayCallbackURL = firstNonEmpty(f.Gateway.CallbackURL, cfg.GatewayCallbackURL)
		cfg.GatewayResultURL = firstNonEmpty(f.Gateway.ResultURL, cfg.GatewayResultURL)
		if f.Gateway.RateLimit > 0 {
			cfg.GatewayRateLimit = f.Gateway.RateLimit
		}
		if f.Gateway.RateBurst > 0 {
			cfg.GatewayRateBurst = f.Gateway.RateBurst
		}
		if cfg.GatewayTimeout, err = parseDuration("gateway.timeout", f.Gateway.Timeout, cfg.GatewayTimeout); err != nil {
			return Config{}, err
		}
		if cfg.ReconcileInterval, err = parseDuration("reconcile.interval", f.Reconcile.Interval, cfg.ReconcileInterval); err != nil {
			return Config{}, err
		}
		if cfg.ReconcileAfter, err = parseDuration("reconcile.after", f.Reconcile.After, cfg.ReconcileAfter); err != nil {
			return Config{}, err
		}
		if f.Reconcile.BatchSize > 0 {
			cfg.ReconcileBatchSize = f.Reconcile.BatchSize
		}
		if len(f.Commission.Schedule) > 0 {
			schedule = f.Commission.Schedule
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTHMACSecret = envOrDefault("JWT_HMAC_SECRET", cfg.JWTHMACSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.GatewayBaseURL = envOrDefault("GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayClientID = envOrDefault("GATEWAY_CLIENT_ID", cfg.GatewayClientID)
	cfg.GatewayClientSecret = envOrDefault("GATEWAY_CLIENT_SECRET", cfg.GatewayClientSecret)
	cfg.GatewayCallbackURL = envOrDefault("GATEWAY_CALLBACK_URL", cfg.GatewayCallbackURL)
	cfg.GatewayResultURL = envOrDefault("GATEWAY_RESULT_URL", cfg.GatewayResultURL)
	cfg.GatewayTimeout = envDuration("GATEWAY_TIMEOUT", cfg.GatewayTimeout)
	cfg.IdempotencyTTL = envDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyLeaseTTL = envDuration("IDEMPOTENCY_LEASE_TTL", cfg.IdempotencyLeaseTTL)
	cfg.ReconcileInterval = envDuration("RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.ReconcileAfter = envDuration("RECONCILE_AFTER", cfg.ReconcileAfter)
	cfg.ReconcileBatchSize = envInt("RECONCILE_BATCH_SIZE", cfg.ReconcileBatchSize)
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	if rate := os.Getenv("COMMISSION_RATE"); rate != "" {
		schedule = []commissionEntry{{Rate: rate}}
	}

	commission, err := buildCommissionSchedule(schedule)
	if err != nil {
		return Config{}, err
	}
	cfg.Commission = commission

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTPublicKeyPEM == "" && cfg.JWTHMACSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_PUBLIC_KEY_PEM or JWT_HMAC_SECRET")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("missing GATEWAY_BASE_URL")
	}
	return cfg, nil
}

// buildCommissionSchedule parses schedule entries. An entry without effective_from applies
// from the beginning of time.
func buildCommissionSchedule(entries []commissionEntry) (domain.CommissionSchedule, error) {
	rates := make([]domain.CommissionRate, 0, len(entries))
	for i, e := range entries {
		rate, err := decimal.NewFromString(strings.TrimSpace(e.Rate))
		if err != nil {
			return domain.CommissionSchedule{}, fmt.Errorf("commission.schedule[%d].rate: %w", i, err)
		}
		var from time.Time
		if s := strings.TrimSpace(e.EffectiveFrom); s != "" {
			from, err = time.Parse(time.DateOnly, s)
			if err != nil {
				return domain.CommissionSchedule{}, fmt.Errorf("commission.schedule[%d].effective_from: %w", i, err)
			}
		}
		rates = append(rates, domain.CommissionRate{EffectiveFrom: from, Rate: rate})
	}
	schedule, err := domain.NewCommissionSchedule(rates)
	if err != nil {
		return domain.CommissionSchedule{}, fmt.Errorf("commission schedule: rates must be in [0, 1): %w", err)
	}
	return schedule, nil
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or unparsable values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
