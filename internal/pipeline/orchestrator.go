// Package pipeline composes the tracker's core cycle: fetch a market
// snapshot, append it to the rolling history, derive display metrics, and
// forward the observation to the optional sink. One cycle is a tick; ticks
// are synchronous, independent, and never overlap.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/btctracker/internal/domain"
	"github.com/marketpulse/btctracker/internal/history"
	"github.com/marketpulse/btctracker/internal/metrics"
)

// Snapshotter fetches one combined market observation.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.Observation, error)
}

// Sink delivers an observation downstream, reporting the outcome as data.
type Sink interface {
	Forward(ctx context.Context, obs domain.Observation, cfg domain.ForwardingConfig) domain.ForwardResult
}

// QuoteCache mirrors the latest observation for external consumers.
type QuoteCache interface {
	SetLatest(ctx context.Context, obs domain.Observation) error
}

// Broadcaster pushes live events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Alerter delivers operational alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// TickEvent is the payload broadcast to stream subscribers after each tick.
type TickEvent struct {
	Outcome     domain.TickOutcome  `json:"outcome"`
	Metrics     domain.Metrics      `json:"metrics"`
	Observation *domain.Observation `json:"observation,omitempty"`
}

// Options carries the optional collaborators of the orchestrator. Any nil
// field simply disables that side effect.
type Options struct {
	Cache  QuoteCache
	Stream Broadcaster
	Alerts Alerter
	// FailureThreshold is the number of consecutive fetch failures before a
	// fetch_failed alert fires. Values below 1 are treated as 1.
	FailureThreshold int
}

// Orchestrator owns the tracker's mutable session state: the history buffer,
// the forwarding configuration, and the most recent tick outcome and
// metrics. Only the orchestrator appends to history.
type Orchestrator struct {
	source    Snapshotter
	sink      Sink
	history   *history.Buffer
	productID string

	cache     QuoteCache
	stream    Broadcaster
	alerts    Alerter
	threshold int

	// tickMu serializes ticks so a manual trigger can never interleave with
	// the poll loop.
	tickMu sync.Mutex

	// stateMu guards the fields below.
	stateMu     sync.RWMutex
	fwdCfg      domain.ForwardingConfig
	lastOutcome *domain.TickOutcome
	lastMetrics domain.Metrics
	failStreak  int
	fwdFailing  bool

	logger *slog.Logger
}

// NewOrchestrator wires the pipeline around its collaborators. fwdCfg is the
// initial forwarding configuration; it remains mutable via SetForwarding.
func NewOrchestrator(
	source Snapshotter,
	sink Sink,
	buf *history.Buffer,
	productID string,
	fwdCfg domain.ForwardingConfig,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	threshold := opts.FailureThreshold
	if threshold < 1 {
		threshold = 1
	}
	return &Orchestrator{
		source:    source,
		sink:      sink,
		history:   buf,
		productID: productID,
		cache:     opts.Cache,
		stream:    opts.Stream,
		alerts:    opts.Alerts,
		threshold: threshold,
		fwdCfg:    fwdCfg,
		logger:    logger.With(slog.String("component", "pipeline")),
	}
}

// Tick runs one complete fetch→append→derive→forward cycle and returns its
// outcome. A fetch failure leaves the history and the last-update marker
// untouched and skips the forward; a forward failure is reported in the
// outcome but never aborts the tick.
func (o *Orchestrator) Tick(ctx context.Context) domain.TickOutcome {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	outcome := domain.TickOutcome{
		TickID:  uuid.NewString(),
		Time:    time.Now(),
		Forward: domain.ForwardResult{Status: domain.ForwardSkipped},
	}

	obs, err := o.source.Snapshot(ctx)
	if err != nil {
		outcome.FetchError = err.Error()
		o.logger.ErrorContext(ctx, "fetch failed",
			slog.String("tick_id", outcome.TickID),
			slog.String("error", err.Error()),
		)
		o.recordFailure(ctx, outcome)
		return outcome
	}
	outcome.FetchOK = true

	o.history.Append(obs)
	m := metrics.Derive(o.history.Latest(2))

	outcome.Forward = o.sink.Forward(ctx, obs, o.Forwarding())

	o.recordSuccess(ctx, outcome, m, obs)

	o.logger.InfoContext(ctx, "tick completed",
		slog.String("tick_id", outcome.TickID),
		slog.Float64("trade_price", obs.TradePrice),
		slog.Float64("spread", obs.Spread()),
		slog.String("forward", string(outcome.Forward.Status)),
		slog.Int("history_len", o.history.Len()),
	)
	return outcome
}

// RunLoop drives periodic ticks at the given interval until the context is
// cancelled. The first tick runs immediately. Ticks never overlap; a tick
// that outlasts the interval simply delays the next one.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	o.logger.Info("poll loop starting",
		slog.String("product_id", o.productID),
		slog.Duration("interval", interval),
	)

	o.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// LatestObservations returns the last n buffered observations, oldest first.
func (o *Orchestrator) LatestObservations(n int) []domain.Observation {
	return o.history.Latest(n)
}

// HistoryLen returns the current buffer length.
func (o *Orchestrator) HistoryLen() int {
	return o.history.Len()
}

// HistoryCapacity returns the buffer's fixed capacity.
func (o *Orchestrator) HistoryCapacity() int {
	return o.history.Capacity()
}

// LastUpdate returns the capture time of the newest observation, or the zero
// time when the history is empty.
func (o *Orchestrator) LastUpdate() time.Time {
	return o.history.LastUpdate()
}

// LastMetrics returns the metrics derived on the most recent successful tick.
func (o *Orchestrator) LastMetrics() domain.Metrics {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.lastMetrics
}

// LastOutcome returns the most recent tick outcome, if any tick has run.
func (o *Orchestrator) LastOutcome() (domain.TickOutcome, bool) {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	if o.lastOutcome == nil {
		return domain.TickOutcome{}, false
	}
	return *o.lastOutcome, true
}

// Forwarding returns a consistent snapshot of the forwarding configuration.
func (o *Orchestrator) Forwarding() domain.ForwardingConfig {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.fwdCfg
}

// SetForwarding replaces the forwarding configuration. The change takes
// effect on the next tick.
func (o *Orchestrator) SetForwarding(cfg domain.ForwardingConfig) {
	o.stateMu.Lock()
	o.fwdCfg = cfg
	o.stateMu.Unlock()

	o.logger.Info("forwarding updated",
		slog.Bool("enabled", cfg.Enabled),
		slog.String("endpoint", cfg.Endpoint),
	)
	if o.stream != nil {
		o.stream.Broadcast("forwarding_updated", cfg)
	}
}

// ClearHistory empties the buffer, forgets the last update marker and the
// derived metrics. Forwarding configuration is unaffected.
func (o *Orchestrator) ClearHistory() {
	o.history.Clear()

	o.stateMu.Lock()
	o.lastMetrics = domain.Metrics{}
	o.stateMu.Unlock()

	o.logger.Info("history cleared")
	if o.stream != nil {
		o.stream.Broadcast("history_cleared", struct{}{})
	}
}

// recordFailure stores a failed outcome, advances the failure streak, and
// fires a fetch_failed alert when the streak reaches the threshold.
func (o *Orchestrator) recordFailure(ctx context.Context, outcome domain.TickOutcome) {
	o.stateMu.Lock()
	o.lastOutcome = &outcome
	o.failStreak++
	streak := o.failStreak
	o.stateMu.Unlock()

	if o.alerts != nil && streak == o.threshold {
		_ = o.alerts.Notify(ctx, "fetch_failed",
			fmt.Sprintf("%s fetch failing", o.productID),
			fmt.Sprintf("%d consecutive fetch failures, last: %s", streak, outcome.FetchError),
		)
	}
	if o.stream != nil {
		o.stream.Broadcast("tick", TickEvent{Outcome: outcome, Metrics: o.LastMetrics()})
	}
}

// recordSuccess stores the outcome and metrics, mirrors the observation to
// the quote cache, emits the stream event, and handles recovery and
// forward-failure alerts.
func (o *Orchestrator) recordSuccess(ctx context.Context, outcome domain.TickOutcome, m domain.Metrics, obs domain.Observation) {
	o.stateMu.Lock()
	o.lastOutcome = &outcome
	o.lastMetrics = m
	recovered := o.failStreak >= o.threshold
	o.failStreak = 0
	forwardFailed := outcome.Forward.Status == domain.ForwardFailed
	notifyForward := forwardFailed && !o.fwdFailing
	o.fwdFailing = forwardFailed
	o.stateMu.Unlock()

	if o.alerts != nil {
		if recovered {
			_ = o.alerts.Notify(ctx, "recovered",
				fmt.Sprintf("%s fetch recovered", o.productID),
				fmt.Sprintf("trade price %.2f", obs.TradePrice),
			)
		}
		if notifyForward {
			_ = o.alerts.Notify(ctx, "forward_failed",
				fmt.Sprintf("%s forwarding failing", o.productID),
				outcome.Forward.Error,
			)
		}
	}

	if o.cache != nil {
		if err := o.cache.SetLatest(ctx, obs); err != nil {
			o.logger.WarnContext(ctx, "quote cache update failed", slog.String("error", err.Error()))
		}
	}
	if o.stream != nil {
		o.stream.Broadcast("tick", TickEvent{Outcome: outcome, Metrics: m, Observation: &obs})
	}
}
