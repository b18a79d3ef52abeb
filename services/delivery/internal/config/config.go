package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// Config is the resolved runtime configuration for the delivery service.
// It merges file defaults and environment overrides so local and deployed
// runs share one code path.
type Config struct {
	HTTPPort int

	Environment         domain.Environment
	RegulatorURL        string
	VerificationBaseURL string

	DatabaseURL string
	MaxDBConns  int32

	// RedisURL is optional; when set the circuit breaker state moves from
	// postgres to redis.
	RedisURL string

	// KafkaBrokers and KafkaTopic are optional; when set the service also
	// consumes enqueue requests from kafka.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// EncryptionKeyHex is the 32-byte AES key for stored credentials,
	// hex encoded.
	EncryptionKeyHex string

	// JWTSecret signs and verifies operator bearer tokens.
	JWTSecret string

	// POSWebhookSecret authenticates point-of-sale enqueue requests when
	// set; empty leaves the enqueue endpoint open.
	POSWebhookSecret string

	Workers          int
	PollInterval     time.Duration
	ClaimLease       time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	RequestTimeout   time.Duration
	FailureThreshold int
	BreakerCooldown  time.Duration
}

// configFile mirrors the YAML schema used by configs/delivery.yaml.
type configFile struct {
	Service struct {
		HTTPPort    int    `yaml:"http_port"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`
	Regulator struct {
		BaseURL             string `yaml:"base_url"`
		VerificationBaseURL string `yaml:"verification_base_url"`
		RequestTimeoutSecs  int    `yaml:"request_timeout_seconds"`
	} `yaml:"regulator"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
		KafkaGroupID string   `yaml:"kafka_group_id"`
	} `yaml:"dependencies"`
	Delivery struct {
		Workers          int `yaml:"workers"`
		PollIntervalMS   int `yaml:"poll_interval_ms"`
		ClaimLeaseSecs   int `yaml:"claim_lease_seconds"`
		MaxRetries       int `yaml:"max_retries"`
		BackoffBaseSecs  int `yaml:"backoff_base_seconds"`
		BackoffMaxSecs   int `yaml:"backoff_max_seconds"`
		FailureThreshold int `yaml:"failure_threshold"`
		CooldownSecs     int `yaml:"breaker_cooldown_seconds"`
	} `yaml:"delivery"`
}

// Load resolves configuration in priority order: defaults -> file -> env.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		Environment:      domain.EnvEssai,
		MaxDBConns:       10,
		KafkaGroupID:     "srm-delivery",
		Workers:          2,
		PollInterval:     time.Second,
		ClaimLease:       2 * time.Minute,
		MaxRetries:       10,
		BackoffBase:      time.Minute,
		BackoffMax:       time.Hour,
		RequestTimeout:   30 * time.Second,
		FailureThreshold: 5,
		BreakerCooldown:  2 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.Environment != "" {
			cfg.Environment = domain.Environment(f.Service.Environment)
		}
		if f.Regulator.BaseURL != "" {
			cfg.RegulatorURL = f.Regulator.BaseURL
		}
		if f.Regulator.VerificationBaseURL != "" {
			cfg.VerificationBaseURL = f.Regulator.VerificationBaseURL
		}
		if f.Regulator.RequestTimeoutSecs > 0 {
			cfg.RequestTimeout = time.Duration(f.Regulator.RequestTimeoutSecs) * time.Second
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Dependencies.KafkaTopic != "" {
			cfg.KafkaTopic = f.Dependencies.KafkaTopic
		}
		if f.Dependencies.KafkaGroupID != "" {
			cfg.KafkaGroupID = f.Dependencies.KafkaGroupID
		}
		if f.Delivery.Workers > 0 {
			cfg.Workers = f.Delivery.Workers
		}
		if f.Delivery.PollIntervalMS > 0 {
			cfg.PollInterval = time.Duration(f.Delivery.PollIntervalMS) * time.Millisecond
		}
		if f.Delivery.ClaimLeaseSecs > 0 {
			cfg.ClaimLease = time.Duration(f.Delivery.ClaimLeaseSecs) * time.Second
		}
		if f.Delivery.MaxRetries > 0 {
			cfg.MaxRetries = f.Delivery.MaxRetries
		}
		if f.Delivery.BackoffBaseSecs > 0 {
			cfg.BackoffBase = time.Duration(f.Delivery.BackoffBaseSecs) * time.Second
		}
		if f.Delivery.BackoffMaxSecs > 0 {
			cfg.BackoffMax = time.Duration(f.Delivery.BackoffMaxSecs) * time.Second
		}
		if f.Delivery.FailureThreshold > 0 {
			cfg.FailureThreshold = f.Delivery.FailureThreshold
		}
		if f.Delivery.CooldownSecs > 0 {
			cfg.BreakerCooldown = time.Duration(f.Delivery.CooldownSecs) * time.Second
		}
	}

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	if env := os.Getenv("SRM_ENVIRONMENT"); env != "" {
		cfg.Environment = domain.Environment(env)
	}
	cfg.RegulatorURL = envOrDefault("SRM_BASE_URL", cfg.RegulatorURL)
	cfg.VerificationBaseURL = envOrDefault("SRM_VERIFICATION_BASE_URL", cfg.VerificationBaseURL)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.EncryptionKeyHex = envOrDefault("CREDENTIAL_ENCRYPTION_KEY", cfg.EncryptionKeyHex)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.POSWebhookSecret = envOrDefault("POS_WEBHOOK_SECRET", cfg.POSWebhookSecret)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaGroupID = envOrDefault("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.Workers = envInt("DELIVERY_WORKERS", cfg.Workers)
	cfg.MaxRetries = envInt("DELIVERY_MAX_RETRIES", cfg.MaxRetries)
	cfg.BackoffBase = time.Duration(envInt("BACKOFF_BASE_SECONDS", int(cfg.BackoffBase.Seconds()))) * time.Second
	cfg.BackoffMax = time.Duration(envInt("BACKOFF_MAX_SECONDS", int(cfg.BackoffMax.Seconds()))) * time.Second
	cfg.FailureThreshold = envInt("BREAKER_FAILURE_THRESHOLD", cfg.FailureThreshold)
	cfg.BreakerCooldown = time.Duration(envInt("BREAKER_COOLDOWN_SECONDS", int(cfg.BreakerCooldown.Seconds()))) * time.Second

	if !cfg.Environment.Valid() {
		return Config{}, fmt.Errorf("invalid environment %q", cfg.Environment)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RegulatorURL == "" {
		return Config{}, fmt.Errorf("missing SRM_BASE_URL")
	}
	if cfg.VerificationBaseURL == "" {
		return Config{}, fmt.Errorf("missing SRM_VERIFICATION_BASE_URL")
	}
	return cfg, nil
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

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

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
