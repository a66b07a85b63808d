package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("NOTIFICATION_DEDUP_WINDOW_SEC", "not-a-number")

	cfg := LoadConfig()

	if cfg.AppPort != "9090" {
		t.Fatalf("AppPort = %q, want 9090", cfg.AppPort)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.RedisEnabled {
		t.Fatal("RedisEnabled should be true")
	}
	if cfg.NotificationDedupWindow != 5*time.Minute {
		t.Fatalf("NotificationDedupWindow = %s, want 5m", cfg.NotificationDedupWindow)
	}
	if cfg.AuthCookieName != "access_token" {
		t.Fatalf("AuthCookieName = %q", cfg.AuthCookieName)
	}
	if cfg.StorageEnabled() {
		t.Fatal("storage should be disabled without region and bucket")
	}
}
