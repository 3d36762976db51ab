package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SECRET", "HTTP_PORT", "DATABASE_DSN", "CONFIDENCE_THRESHOLD", "VISION_TIMEOUT", "KAFKA_BROKERS", "KAFKA_TOPIC", "CORS_ORIGINS", "VISION_PROVIDER"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Secret != "dev_secret" || cfg.HTTPPort != "8080" || cfg.DatabaseDSN != "file:medeasy.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 0.6 || cfg.VisionTimeout != 20*time.Second || cfg.KafkaTopic != "prescription-events" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 0 || !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Fatalf("unexpected list defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "abc")
	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")
	t.Setenv("VISION_TIMEOUT", "3s")
	t.Setenv("VISION_PROVIDER", " HTTP ")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	cfg := Load()
	if cfg.HTTPPort != "8080" {
		t.Fatalf("non-numeric port should fall back, got %q", cfg.HTTPPort)
	}
	if cfg.ConfidenceThreshold != 1 {
		t.Fatalf("threshold should clamp to 1, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.VisionTimeout != 3*time.Second || cfg.VisionProvider != "http" {
		t.Fatalf("unexpected vision config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}
