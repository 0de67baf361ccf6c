package coinbase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketpulse/btctracker/internal/platform/coinbase"
)

const (
	tickerBody = `{"trade_id":86326522,"price":"60842.53","size":"0.00125","bid":"60842.52","ask":"60842.54","volume":"12345.678","time":"2025-06-01T12:00:00.000000Z"}`
	bookBody   = `{"sequence":3,"bids":[["60842.52","0.75",4]],"asks":[["60842.54","1.25",2]]}`
)

// newExchange starts a stub exchange serving the given ticker and book
// payloads for the BTC-USD product.
func newExchange(t *testing.T, ticker, book string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/BTC-USD/ticker", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ticker))
	})
	mux.HandleFunc("GET /products/BTC-USD/book", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("level") != "1" {
			t.Errorf("book request level = %q, want 1", r.URL.Query().Get("level"))
		}
		w.Write([]byte(book))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *coinbase.Client {
	return coinbase.NewClient(baseURL, "BTC-USD", 2*time.Second)
}

func TestSnapshot_CombinesTickerAndBook(t *testing.T) {
	srv := newExchange(t, tickerBody, bookBody)
	c := newTestClient(srv.URL)

	before := time.Now()
	obs, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if obs.TradePrice != 60842.53 {
		t.Errorf("trade price = %v, want 60842.53", obs.TradePrice)
	}
	if obs.TradeSize != 0.00125 {
		t.Errorf("trade size = %v, want 0.00125", obs.TradeSize)
	}
	if obs.Volume != 12345.678 {
		t.Errorf("volume = %v, want 12345.678", obs.Volume)
	}
	if obs.BidPrice != 60842.52 || obs.BidSize != 0.75 {
		t.Errorf("bid = %v/%v, want 60842.52/0.75", obs.BidPrice, obs.BidSize)
	}
	if obs.AskPrice != 60842.54 || obs.AskSize != 1.25 {
		t.Errorf("ask = %v/%v, want 60842.54/1.25", obs.AskPrice, obs.AskSize)
	}

	// Capture time is assigned locally, not parsed from the response.
	if obs.Timestamp.Before(before) || obs.Timestamp.After(time.Now()) {
		t.Errorf("timestamp %v not within the call window", obs.Timestamp)
	}
}

func TestSnapshot_EmptyBookSideDefaultsToZero(t *testing.T) {
	srv := newExchange(t, tickerBody, `{"sequence":3,"bids":[],"asks":[["60842.54","1.25",2]]}`)
	c := newTestClient(srv.URL)

	obs, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if obs.BidPrice != 0 || obs.BidSize != 0 {
		t.Errorf("empty bid side = %v/%v, want 0/0", obs.BidPrice, obs.BidSize)
	}
	if obs.AskPrice != 60842.54 {
		t.Errorf("ask price = %v, want 60842.54", obs.AskPrice)
	}
}

func TestSnapshot_TickerFailureYieldsNoObservation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/BTC-USD/ticker", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal error"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /products/BTC-USD/book", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bookBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Error("expected error when ticker call fails")
	}
}

func TestSnapshot_MalformedNumbersAreErrors(t *testing.T) {
	srv := newExchange(t,
		`{"price":"not-a-number","size":"0.1","volume":"1"}`,
		bookBody,
	)
	c := newTestClient(srv.URL)

	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Error("expected error for unparseable ticker price")
	}
}

func TestGetOrderBook_ParsesLevels(t *testing.T) {
	srv := newExchange(t, tickerBody, bookBody)
	c := newTestClient(srv.URL)

	book, err := c.GetOrderBook(context.Background())
	if err != nil {
		t.Fatalf("GetOrderBook: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 1 {
		t.Fatalf("levels = %d/%d, want 1/1", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 60842.52 || book.Bids[0].NumOrders != 4 {
		t.Errorf("bid level = %+v", book.Bids[0])
	}
}

func TestGetTicker_RateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/BTC-USD/ticker", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"slow down"}`, http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.GetTicker(context.Background()); err == nil {
		t.Error("expected error on 429 response")
	}
}
