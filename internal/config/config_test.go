package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseURL != "file:test.db" {
		t.Fatalf("unexpected database settings %+v", cfg)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("jwt ttl = %v", cfg.JWTTTL)
	}
	if cfg.Port != "5000" || cfg.ReminderInterval != 5*time.Minute || cfg.KafkaAuditTopic != "taskflow.audit" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if brokers := cfg.Brokers(); len(brokers) != 2 || brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", brokers)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.SlogLevel())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	content := "database_driver: sqlite\ndatabase_url: from-file.db\nport: \"8080\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "from-file.db" {
		t.Fatalf("file value not used: %q", cfg.DatabaseURL)
	}
	if cfg.Port != "9090" {
		t.Fatalf("environment should override the file, got %q", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"bad driver":  {DatabaseDriver: "mysql", DatabaseURL: "x", AlertWebhookKind: "slack"},
		"missing url": {DatabaseDriver: "postgres", AlertWebhookKind: "slack"},
		"bad alerter": {DatabaseDriver: "postgres", DatabaseURL: "x", AlertWebhookKind: "teams"},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestOriginsIncludeClientURL(t *testing.T) {
	cfg := Config{ClientURL: "https://app.example.com", AllowedOrigins: "https://admin.example.com"}
	origins := cfg.Origins()

	found := map[string]bool{}
	for _, o := range origins {
		found[o] = true
	}
	if !found["https://app.example.com"] || !found["https://admin.example.com"] {
		t.Fatalf("unexpected origins %v", origins)
	}
}
