package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BTCTRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BTCTRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators adjust deployments without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "BTCTRACK_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.ProductID, "BTCTRACK_EXCHANGE_PRODUCT_ID")
	setDuration(&cfg.Exchange.RequestTimeout, "BTCTRACK_EXCHANGE_REQUEST_TIMEOUT")

	// ── History ──
	setInt(&cfg.History.Capacity, "BTCTRACK_HISTORY_CAPACITY")

	// ── Poll ──
	setDuration(&cfg.Poll.Interval, "BTCTRACK_POLL_INTERVAL")
	setBool(&cfg.Poll.AutoStart, "BTCTRACK_POLL_AUTO_START")

	// ── Forward ──
	setBool(&cfg.Forward.Enabled, "BTCTRACK_FORWARD_ENABLED")
	setStr(&cfg.Forward.Endpoint, "BTCTRACK_FORWARD_ENDPOINT")
	setDuration(&cfg.Forward.RequestTimeout, "BTCTRACK_FORWARD_REQUEST_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BTCTRACK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BTCTRACK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BTCTRACK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BTCTRACK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BTCTRACK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BTCTRACK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BTCTRACK_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BTCTRACK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BTCTRACK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BTCTRACK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BTCTRACK_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BTCTRACK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BTCTRACK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BTCTRACK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BTCTRACK_NOTIFY_EVENTS")
	setInt(&cfg.Notify.FailureThreshold, "BTCTRACK_NOTIFY_FAILURE_THRESHOLD")

	// ── Top-level ──
	setStr(&cfg.Mode, "BTCTRACK_MODE")
	setStr(&cfg.LogLevel, "BTCTRACK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
