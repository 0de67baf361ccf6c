package forward_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
	"github.com/marketpulse/btctracker/internal/forward"
)

var testObs = domain.Observation{
	TradePrice: 100.5,
	TradeSize:  0.5,
	BidPrice:   100,
	BidSize:    1,
	AskPrice:   101,
	AskSize:    2,
	Volume:     1000,
}

func newForwarder() *forward.Forwarder {
	return forward.NewForwarder(2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestForward_SkippedWhenDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	f := newForwarder()

	// Disabled with a reachable endpoint: still skipped, no network call.
	res := f.Forward(context.Background(), testObs, domain.ForwardingConfig{
		Enabled:  false,
		Endpoint: srv.URL,
	})
	if res.Status != domain.ForwardSkipped {
		t.Errorf("disabled: status = %s, want skipped", res.Status)
	}

	// Enabled but no endpoint: skipped as well.
	res = f.Forward(context.Background(), testObs, domain.ForwardingConfig{Enabled: true})
	if res.Status != domain.ForwardSkipped {
		t.Errorf("no endpoint: status = %s, want skipped", res.Status)
	}

	if calls.Load() != 0 {
		t.Errorf("sink received %d calls, want 0", calls.Load())
	}
}

func TestForward_SerializesSixElementArray(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	f := newForwarder()
	res := f.Forward(context.Background(), testObs, domain.ForwardingConfig{
		Enabled:  true,
		Endpoint: srv.URL,
	})

	if res.Status != domain.ForwardSent {
		t.Fatalf("status = %s (%s), want sent", res.Status, res.Error)
	}
	// Order is fixed: bid price, bid size, ask price, ask size, trade price,
	// trade size. Volume and timestamp are excluded.
	if want := "[100,1,101,2,100.5,0.5]"; gotBody != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", gotContentType)
	}
}

func TestForward_Non2xxIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newForwarder()
	res := f.Forward(context.Background(), testObs, domain.ForwardingConfig{
		Enabled:  true,
		Endpoint: srv.URL,
	})

	if res.Status != domain.ForwardFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Error == "" {
		t.Error("failed result should carry a cause")
	}
}

func TestForward_UnreachableSinkIsFailedNotPanic(t *testing.T) {
	f := newForwarder()
	res := f.Forward(context.Background(), testObs, domain.ForwardingConfig{
		Enabled:  true,
		Endpoint: "http://127.0.0.1:1", // nothing listens here
	})

	if res.Status != domain.ForwardFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
}
