// Package config defines the top-level configuration for the BTC tracker and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BTCTRACK_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	History  HistoryConfig  `toml:"history"`
	Poll     PollConfig     `toml:"poll"`
	Forward  ForwardConfig  `toml:"forward"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds the Coinbase Exchange public API parameters.
type ExchangeConfig struct {
	BaseURL        string   `toml:"base_url"`
	ProductID      string   `toml:"product_id"`
	RequestTimeout duration `toml:"request_timeout"`
}

// HistoryConfig holds the rolling observation buffer parameters.
type HistoryConfig struct {
	Capacity int `toml:"capacity"`
}

// PollConfig holds the auto-refresh loop parameters.
type PollConfig struct {
	Interval duration `toml:"interval"`
	// AutoStart starts the poll loop at boot. When false, ticks only happen
	// via the manual trigger endpoint.
	AutoStart bool `toml:"auto_start"`
}

// ForwardConfig holds the initial state of the downstream sink. Both fields
// remain mutable at runtime through the control surface.
type ForwardConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	RequestTimeout duration `toml:"request_timeout"`
}

// RedisConfig holds the optional latest-quote mirror parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey enables X-API-Key authentication when non-empty.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// FailureThreshold is the number of consecutive fetch failures before a
	// fetch_failed notification is emitted.
	FailureThreshold int `toml:"failure_threshold"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. Values mirror the public
// Coinbase Exchange API for the BTC-USD product with a 100-point window and a
// 5-second refresh.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL:        "https://api.exchange.coinbase.com",
			ProductID:      "BTC-USD",
			RequestTimeout: duration{5 * time.Second},
		},
		History: HistoryConfig{
			Capacity: 100,
		},
		Poll: PollConfig{
			Interval:  duration{5 * time.Second},
			AutoStart: true,
		},
		Forward: ForwardConfig{
			Enabled:        false,
			RequestTimeout: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Notify: NotifyConfig{
			FailureThreshold: 3,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Validate checks the configuration for consistency. All problems are
// collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	switch c.Mode {
	case "poll", "serve", "full":
	default:
		errs = append(errs, fmt.Sprintf("mode must be poll, serve, or full, got %q", c.Mode))
	}

	// Exchange
	if c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty")
	} else if u, err := url.Parse(c.Exchange.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("exchange: base_url %q is not an absolute URL", c.Exchange.BaseURL))
	}
	if c.Exchange.ProductID == "" {
		errs = append(errs, "exchange: product_id must not be empty")
	}
	if c.Exchange.RequestTimeout.Duration <= 0 {
		errs = append(errs, "exchange: request_timeout must be > 0")
	}

	// History
	if c.History.Capacity <= 0 {
		errs = append(errs, fmt.Sprintf("history: capacity must be > 0, got %d", c.History.Capacity))
	}

	// Poll
	if c.Poll.Interval.Duration <= 0 {
		errs = append(errs, "poll: interval must be > 0")
	}

	// Forward
	if c.Forward.Enabled && c.Forward.Endpoint == "" {
		errs = append(errs, "forward: endpoint must be set when forwarding is enabled")
	}
	if c.Forward.Endpoint != "" {
		if u, err := url.Parse(c.Forward.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("forward: endpoint %q is not an absolute URL", c.Forward.Endpoint))
		}
	}
	if c.Forward.RequestTimeout.Duration <= 0 {
		errs = append(errs, "forward: request_timeout must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Mode == "serve" || c.Mode == "full" {
		if !c.Server.Enabled {
			errs = append(errs, fmt.Sprintf("server: must be enabled in %s mode", c.Mode))
		}
	}

	// Notify — Telegram fields come in pairs.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.FailureThreshold < 1 {
		errs = append(errs, "notify: failure_threshold must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
