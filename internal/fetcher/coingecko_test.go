package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newCoinGeckoForTest(url string) *CoinGecko {
	return NewCoinGecko(CoinGeckoOptions{
		BaseURL:      url,
		Coins:        map[string]string{"BTC": "bitcoin", "ETH": "ethereum"},
		BaseCurrency: "USD",
		Timeout:      time.Second,
		UserAgent:    "test",
	}, noopLogger())
}

func TestCoinGeckoFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Fatalf("expected vs_currencies=usd, got %s", got)
		}
		w.Header().Set("ETag", `"abc"`)
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{
			"bitcoin":  {"usd": 50000},
			"ethereum": {"usd": 3000},
		})
	}))
	defer srv.Close()

	pairs, meta, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if pairs["BTC_USD"] != 50000 || pairs["ETH_USD"] != 3000 {
		t.Fatalf("unexpected pairs: %#v", pairs)
	}
	if meta.Source != "CoinGecko" {
		t.Fatalf("unexpected source: %s", meta.Source)
	}
	if meta.ETag != `"abc"` {
		t.Fatalf("etag should be recorded, got %q", meta.ETag)
	}
	if meta.StatusCode != http.StatusOK {
		t.Fatalf("status code should be recorded, got %d", meta.StatusCode)
	}
	if _, err := time.Parse(time.RFC3339, meta.Timestamp); err != nil {
		t.Fatalf("timestamp should be RFC3339: %v", err)
	}
}

func TestCoinGeckoFetchRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if !IsKind(err, KindRateLimit) {
		t.Fatalf("429 should classify as rate_limit, got %v", err)
	}
}

func TestCoinGeckoFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if !IsKind(err, KindServer) {
		t.Fatalf("502 should classify as server, got %v", err)
	}
}

func TestCoinGeckoFetchZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{
			"bitcoin":  {"usd": 0},
			"ethereum": {"usd": 3000},
		})
	}))
	defer srv.Close()

	_, _, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if !IsKind(err, KindMalformed) {
		t.Fatalf("zero price should classify as malformed, got %v", err)
	}
}

func TestCoinGeckoFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, _, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if !IsKind(err, KindMalformed) {
		t.Fatalf("bad payload should classify as malformed, got %v", err)
	}
}

func TestCoinGeckoFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server forces a connection error

	_, _, err := newCoinGeckoForTest(srv.URL).Fetch(context.Background())
	if !IsKind(err, KindTransport) {
		t.Fatalf("network failure should classify as transport, got %v", err)
	}
}
