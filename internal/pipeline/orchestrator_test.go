package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
	"github.com/marketpulse/btctracker/internal/history"
	"github.com/marketpulse/btctracker/internal/pipeline"
)

// fakeSource returns queued observations or errors, one per Snapshot call.
type fakeSource struct {
	mu      sync.Mutex
	results []snapshotResult
	calls   int
}

type snapshotResult struct {
	obs domain.Observation
	err error
}

func (f *fakeSource) Snapshot(ctx context.Context) (domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return domain.Observation{}, errors.New("no more queued results")
	}
	r := f.results[f.calls]
	f.calls++
	return r.obs, r.err
}

// fakeSink records every forwarded observation and config.
type fakeSink struct {
	mu     sync.Mutex
	obs    []domain.Observation
	cfgs   []domain.ForwardingConfig
	result domain.ForwardResult
}

func (f *fakeSink) Forward(ctx context.Context, obs domain.Observation, cfg domain.ForwardingConfig) domain.ForwardResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, obs)
	f.cfgs = append(f.cfgs, cfg)
	return f.result
}

// fakeAlerter records notified events.
type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAlerter) Notify(ctx context.Context, event, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAlerter) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newOrchestrator(t *testing.T, source *fakeSource, sink *fakeSink, fwd domain.ForwardingConfig, opts pipeline.Options) *pipeline.Orchestrator {
	t.Helper()
	buf, err := history.NewBuffer(100)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return pipeline.NewOrchestrator(source, sink, buf, "BTC-USD", fwd, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func obs(price float64) domain.Observation {
	return domain.Observation{
		Timestamp:  time.Now(),
		TradePrice: price,
		BidPrice:   price - 0.5,
		AskPrice:   price + 0.5,
	}
}

func TestTick_SuccessAppendsAndForwardsSameObservation(t *testing.T) {
	o := obs(100)
	source := &fakeSource{results: []snapshotResult{{obs: o}}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSent}}
	fwd := domain.ForwardingConfig{Enabled: true, Endpoint: "http://sink.local/ingest"}

	orch := newOrchestrator(t, source, sink, fwd, pipeline.Options{})
	outcome := orch.Tick(context.Background())

	if !outcome.FetchOK {
		t.Fatalf("fetch failed: %s", outcome.FetchError)
	}
	if outcome.Forward.Status != domain.ForwardSent {
		t.Errorf("forward status = %s, want sent", outcome.Forward.Status)
	}
	if outcome.TickID == "" {
		t.Error("tick id should be set")
	}

	if got := orch.HistoryLen(); got != 1 {
		t.Errorf("history len = %d, want 1", got)
	}
	if lu := orch.LastUpdate(); !lu.Equal(o.Timestamp) {
		t.Errorf("last update = %v, want %v", lu, o.Timestamp)
	}

	if len(sink.obs) != 1 {
		t.Fatalf("sink received %d observations, want 1", len(sink.obs))
	}
	// The forwarder must see the just-appended observation, never a stale one.
	if sink.obs[0] != o {
		t.Errorf("forwarded observation differs from fetched one")
	}
	if sink.cfgs[0] != fwd {
		t.Errorf("forwarded config = %+v, want %+v", sink.cfgs[0], fwd)
	}
}

func TestTick_FetchFailureLeavesStateUntouched(t *testing.T) {
	source := &fakeSource{results: []snapshotResult{
		{obs: obs(100)},
		{err: errors.New("connection refused")},
	}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSkipped}}

	orch := newOrchestrator(t, source, sink, domain.ForwardingConfig{}, pipeline.Options{})

	orch.Tick(context.Background())
	lenBefore := orch.HistoryLen()
	updateBefore := orch.LastUpdate()

	outcome := orch.Tick(context.Background())
	if outcome.FetchOK {
		t.Fatal("second tick should have failed")
	}
	if outcome.FetchError == "" {
		t.Error("fetch error cause missing")
	}
	if outcome.Forward.Status != domain.ForwardSkipped {
		t.Errorf("forward after fetch failure = %s, want skipped", outcome.Forward.Status)
	}

	if got := orch.HistoryLen(); got != lenBefore {
		t.Errorf("history len changed on failed tick: %d -> %d", lenBefore, got)
	}
	if got := orch.LastUpdate(); !got.Equal(updateBefore) {
		t.Errorf("last update changed on failed tick: %v -> %v", updateBefore, got)
	}
	// The sink was only called for the first, successful tick.
	if len(sink.obs) != 1 {
		t.Errorf("sink called %d times, want 1", len(sink.obs))
	}
}

func TestTick_MetricsDerivedFromLastTwo(t *testing.T) {
	source := &fakeSource{results: []snapshotResult{
		{obs: obs(100)},
		{obs: obs(110)},
	}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSkipped}}

	orch := newOrchestrator(t, source, sink, domain.ForwardingConfig{}, pipeline.Options{})
	orch.Tick(context.Background())
	orch.Tick(context.Background())

	m := orch.LastMetrics()
	if !m.Available {
		t.Fatal("metrics should be available")
	}
	if m.PriceChange != 10 {
		t.Errorf("price change = %v, want 10", m.PriceChange)
	}
	if m.PriceChangePct != 10 {
		t.Errorf("price change pct = %v, want 10", m.PriceChangePct)
	}
}

func TestSetForwarding_TakesEffectNextTick(t *testing.T) {
	source := &fakeSource{results: []snapshotResult{
		{obs: obs(100)},
		{obs: obs(101)},
	}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSent}}

	orch := newOrchestrator(t, source, sink, domain.ForwardingConfig{}, pipeline.Options{})
	orch.Tick(context.Background())

	next := domain.ForwardingConfig{Enabled: true, Endpoint: "http://sink.local"}
	orch.SetForwarding(next)
	if got := orch.Forwarding(); got != next {
		t.Errorf("Forwarding = %+v, want %+v", got, next)
	}

	orch.Tick(context.Background())
	if len(sink.cfgs) != 2 {
		t.Fatalf("sink called %d times, want 2", len(sink.cfgs))
	}
	if sink.cfgs[0].Enabled {
		t.Error("first tick should have seen disabled forwarding")
	}
	if sink.cfgs[1] != next {
		t.Errorf("second tick config = %+v, want %+v", sink.cfgs[1], next)
	}
}

func TestClearHistory_ResetsBufferAndMetrics(t *testing.T) {
	source := &fakeSource{results: []snapshotResult{{obs: obs(100)}}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSkipped}}

	orch := newOrchestrator(t, source, sink, domain.ForwardingConfig{Enabled: true, Endpoint: "http://s"}, pipeline.Options{})
	orch.Tick(context.Background())
	orch.ClearHistory()

	if got := orch.HistoryLen(); got != 0 {
		t.Errorf("history len after clear = %d, want 0", got)
	}
	if !orch.LastUpdate().IsZero() {
		t.Error("last update after clear should be zero")
	}
	if orch.LastMetrics().Available {
		t.Error("metrics after clear should be unavailable")
	}
	// Forwarding configuration is independent of a history clear.
	if !orch.Forwarding().Enabled {
		t.Error("forwarding config should survive a clear")
	}
}

func TestTick_FetchFailureStreakAlertsOnceAtThreshold(t *testing.T) {
	boom := errors.New("boom")
	source := &fakeSource{results: []snapshotResult{
		{err: boom}, {err: boom}, {err: boom}, {err: boom}, {obs: obs(100)},
	}}
	sink := &fakeSink{result: domain.ForwardResult{Status: domain.ForwardSkipped}}
	alerts := &fakeAlerter{}

	orch := newOrchestrator(t, source, sink, domain.ForwardingConfig{}, pipeline.Options{
		Alerts:           alerts,
		FailureThreshold: 3,
	})

	for i := 0; i < 5; i++ {
		orch.Tick(context.Background())
	}

	want := []string{"fetch_failed", "recovered"}
	got := alerts.got()
	if len(got) != len(want) {
		t.Fatalf("alert events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alert %d = %s, want %s", i, got[i], want[i])
		}
	}
}
