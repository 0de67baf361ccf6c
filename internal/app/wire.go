package app

import (
	"context"
	"fmt"
	"log/slog"

	redisc "github.com/marketpulse/btctracker/internal/cache/redis"
	"github.com/marketpulse/btctracker/internal/config"
	"github.com/marketpulse/btctracker/internal/domain"
	"github.com/marketpulse/btctracker/internal/forward"
	"github.com/marketpulse/btctracker/internal/history"
	"github.com/marketpulse/btctracker/internal/notify"
	"github.com/marketpulse/btctracker/internal/pipeline"
	"github.com/marketpulse/btctracker/internal/platform/coinbase"
	"github.com/marketpulse/btctracker/internal/server"
	"github.com/marketpulse/btctracker/internal/server/handler"
	"github.com/marketpulse/btctracker/internal/server/ws"
)

// Deps is the wired dependency graph shared by all operating modes.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Server       *server.Server
	WSHub        *ws.Hub
}

// Wire constructs the full dependency graph from the configuration. The
// returned cleanup function releases external connections and must be called
// on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	exchange := coinbase.NewClient(
		cfg.Exchange.BaseURL,
		cfg.Exchange.ProductID,
		cfg.Exchange.RequestTimeout.Duration,
	)

	buf, err := history.NewBuffer(cfg.History.Capacity)
	if err != nil {
		return nil, cleanup, fmt.Errorf("history buffer: %w", err)
	}

	forwarder := forward.NewForwarder(cfg.Forward.RequestTimeout.Duration, logger)

	opts := pipeline.Options{
		FailureThreshold: cfg.Notify.FailureThreshold,
	}

	// Optional Redis latest-quote mirror.
	if cfg.Redis.Enabled {
		rc, err := redisc.New(ctx, redisc.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		opts.Cache = redisc.NewQuoteCache(rc, cfg.Exchange.ProductID)
		logger.Info("redis quote mirror enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// Optional alert channels.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		opts.Alerts = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		logger.Info("alerting enabled", slog.Int("senders", len(senders)))
	}

	// WebSocket hub for the live stream. Not built in poll mode, where no
	// server runs to drain it.
	var wsHub *ws.Hub
	serverWanted := cfg.Server.Enabled && cfg.Mode != "poll"
	if serverWanted {
		wsHub = ws.NewHub(logger)
		opts.Stream = wsHub
	}

	orch := pipeline.NewOrchestrator(
		exchange,
		forwarder,
		buf,
		cfg.Exchange.ProductID,
		domain.ForwardingConfig{
			Enabled:  cfg.Forward.Enabled,
			Endpoint: cfg.Forward.Endpoint,
		},
		opts,
		logger,
	)

	deps := &Deps{
		Orchestrator: orch,
		WSHub:        wsHub,
	}

	if serverWanted {
		deps.Server = server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				APIKey:      cfg.Server.APIKey,
			},
			server.Handlers{
				Health:  handler.NewHealthHandler(Version),
				Tracker: handler.NewTrackerHandler(orch, logger),
			},
			wsHub,
			logger,
		)
	}

	return deps, cleanup, nil
}
