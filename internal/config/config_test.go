package config

import (
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
}

func TestValidate_RejectsBadCapacity(t *testing.T) {
	cfg := Defaults()
	cfg.History.Capacity = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for zero capacity")
	}
	if !strings.Contains(err.Error(), "capacity") {
		t.Errorf("error should mention capacity: %v", err)
	}
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown mode")
	}
}

func TestValidate_ForwardEnabledNeedsEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Forward.Enabled = true
	cfg.Forward.Endpoint = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for enabled forwarding without endpoint")
	}

	cfg.Forward.Endpoint = "http://sink.local/ingest"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid forwarding config rejected: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.History.Capacity = -1
	cfg.Exchange.ProductID = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"capacity", "product_id", "port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_TelegramFieldsPaired(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "token"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unpaired telegram token")
	}

	cfg.Notify.TelegramChatID = "chat"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("paired telegram config rejected: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BTCTRACK_EXCHANGE_PRODUCT_ID", "ETH-USD")
	t.Setenv("BTCTRACK_POLL_INTERVAL", "30s")
	t.Setenv("BTCTRACK_FORWARD_ENABLED", "true")
	t.Setenv("BTCTRACK_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Exchange.ProductID != "ETH-USD" {
		t.Errorf("product id = %q, want ETH-USD", cfg.Exchange.ProductID)
	}
	if cfg.Poll.Interval.Seconds() != 30 {
		t.Errorf("interval = %v, want 30s", cfg.Poll.Interval.Duration)
	}
	if !cfg.Forward.Enabled {
		t.Error("forward enabled override not applied")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}
