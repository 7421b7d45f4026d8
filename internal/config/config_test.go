package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "WHATSAPP_TIMEOUT")
	unsetEnvWithCleanup(t, "WHATSAPP_MAX_RETRIES")
	unsetEnvWithCleanup(t, "WHATSAPP_ENABLED")
	unsetEnvWithCleanup(t, "SERVER_PORT")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default server port 8080, got %q", cfg.ServerPort)
	}
	if cfg.WhatsAppTimeoutSeconds != 30 {
		t.Fatalf("expected default whatsapp timeout 30, got %d", cfg.WhatsAppTimeoutSeconds)
	}
	if cfg.WhatsAppMaxRetries != 3 {
		t.Fatalf("expected default whatsapp max retries 3, got %d", cfg.WhatsAppMaxRetries)
	}
	if !cfg.WhatsAppEnabled {
		t.Fatal("expected whatsapp enabled by default")
	}
	if cfg.ClaimEventExchange != "agrisafe.events" {
		t.Fatalf("expected default claim event exchange, got %q", cfg.ClaimEventExchange)
	}
}

func TestLoadConfig_CoercesInvalidRetrySettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "WHATSAPP_TIMEOUT", "0")
	setEnvWithCleanup(t, "WHATSAPP_MAX_RETRIES", "-2")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WhatsAppTimeoutSeconds != 30 {
		t.Fatalf("expected coerced timeout 30, got %d", cfg.WhatsAppTimeoutSeconds)
	}
	if cfg.WhatsAppMaxRetries != 3 {
		t.Fatalf("expected coerced max retries 3, got %d", cfg.WhatsAppMaxRetries)
	}
}

func TestLoadConfig_ReadsWhatsAppSettingsFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "WHATSAPP_API_URL", "https://gateway.example/sender")
	setEnvWithCleanup(t, "WHATSAPP_API_TOKEN", "secret-token")
	setEnvWithCleanup(t, "WHATSAPP_ENABLED", "false")
	setEnvWithCleanup(t, "WHATSAPP_MAX_RETRIES", "5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WhatsAppAPIURL != "https://gateway.example/sender" {
		t.Fatalf("unexpected gateway url %q", cfg.WhatsAppAPIURL)
	}
	if cfg.WhatsAppAPIToken != "secret-token" {
		t.Fatalf("unexpected gateway token %q", cfg.WhatsAppAPIToken)
	}
	if cfg.WhatsAppEnabled {
		t.Fatal("expected whatsapp disabled via env")
	}
	if cfg.WhatsAppMaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.WhatsAppMaxRetries)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
