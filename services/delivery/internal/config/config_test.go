package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "delivery.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  http_port: 9091
  environment: PROD
regulator:
  base_url: https://srm.example.test
  verification_base_url: https://verify.example.test
dependencies:
  postgres_url: postgres://localhost/srm
delivery:
  workers: 4
  max_retries: 6
  backoff_base_seconds: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9091 {
		t.Fatalf("HTTPPort = %d, want 9091", cfg.HTTPPort)
	}
	if cfg.Environment != domain.EnvProd {
		t.Fatalf("Environment = %s, want PROD", cfg.Environment)
	}
	if cfg.Workers != 4 || cfg.MaxRetries != 6 {
		t.Fatalf("delivery overrides not applied: %+v", cfg)
	}
	if cfg.BackoffBase != 30*time.Second {
		t.Fatalf("BackoffBase = %s, want 30s", cfg.BackoffBase)
	}
	if cfg.BackoffMax != time.Hour {
		t.Fatalf("BackoffMax default = %s, want 1h", cfg.BackoffMax)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
service:
  environment: ESSAI
regulator:
  base_url: https://srm.example.test
  verification_base_url: https://verify.example.test
dependencies:
  postgres_url: postgres://file/srm
`)
	t.Setenv("DB_URL", "postgres://env/srm")
	t.Setenv("SRM_ENVIRONMENT", "DEV")
	t.Setenv("DELIVERY_WORKERS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/srm" {
		t.Fatalf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
	}
	if cfg.Environment != domain.EnvDev {
		t.Fatalf("Environment = %s, want DEV", cfg.Environment)
	}
	if cfg.Workers != 8 {
		t.Fatalf("Workers = %d, want 8", cfg.Workers)
	}
}

func TestLoadKafkaBrokersFromEnv(t *testing.T) {
	path := writeConfig(t, `
regulator:
  base_url: https://srm.example.test
  verification_base_url: https://verify.example.test
dependencies:
  postgres_url: postgres://localhost/srm
  kafka_brokers: [file-1:9092]
`)
	t.Setenv("KAFKA_BROKERS", "env-1:9092, env-2:9092")
	t.Setenv("KAFKA_TOPIC", "srm.transactions")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "env-1:9092" || cfg.KafkaBrokers[1] != "env-2:9092" {
		t.Fatalf("KafkaBrokers = %v, want env list", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "srm.transactions" {
		t.Fatalf("KafkaTopic = %q", cfg.KafkaTopic)
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	path := writeConfig(t, `
regulator:
  base_url: https://srm.example.test
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing postgres url")
	}

	path = writeConfig(t, `
dependencies:
  postgres_url: postgres://localhost/srm
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing regulator url")
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	path := writeConfig(t, `
service:
  environment: STAGING
regulator:
  base_url: https://srm.example.test
  verification_base_url: https://verify.example.test
dependencies:
  postgres_url: postgres://localhost/srm
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid environment")
	}
}
