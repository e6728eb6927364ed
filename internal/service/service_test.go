package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"ratehub/internal/fetcher"
	"ratehub/internal/rates"
)

type stubClient struct {
	name  string
	pairs map[string]float64
	meta  rates.FetchMeta
	err   error
}

func (c *stubClient) Name() string { return c.name }

func (c *stubClient) Fetch(ctx context.Context) (map[string]float64, rates.FetchMeta, error) {
	if c.err != nil {
		return nil, rates.FetchMeta{}, c.err
	}
	return c.pairs, c.meta, nil
}

type memStore struct {
	merged      map[string]rates.Point
	refreshedAt string
	history     []rates.HistoryEntry
	writes      int
}

func (m *memStore) MergeWrite(pairs map[string]rates.Point, refreshedAt string) error {
	m.merged = pairs
	m.refreshedAt = refreshedAt
	m.writes++
	return nil
}

func (m *memStore) AppendHistory(entries []rates.HistoryEntry) error {
	m.history = append(m.history, entries...)
	return nil
}

func TestRunUpdatePartialFailure(t *testing.T) {
	good := &stubClient{
		name: "Good",
		pairs: map[string]float64{
			"BTC_USD": 50000, "ETH_USD": 3000, "SOL_USD": 100, "EUR_USD": 1.1, "GBP_USD": 1.3,
		},
		meta: rates.FetchMeta{Source: "Good", Timestamp: "2025-01-01T00:00:00Z"},
	}
	limited := &stubClient{
		name: "Limited",
		err:  &fetcher.Error{Source: "Limited", Kind: fetcher.KindRateLimit, StatusCode: 429, Message: "too many requests"},
	}

	store := &memStore{}
	sync := New([]fetcher.Client{good, limited}, store, nil, zerolog.Nop())

	report, err := sync.RunUpdate(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not be a hard error: %v", err)
	}
	if report.OK {
		t.Fatal("report should be ok=false when a source failed")
	}
	if report.Total != 5 {
		t.Fatalf("expected total=5, got %d", report.Total)
	}
	if src := report.Sources["Limited"]; src.OK || src.Error == "" {
		t.Fatalf("failed source should carry its error: %#v", src)
	}
	if src := report.Sources["Good"]; !src.OK || src.Count != 5 {
		t.Fatalf("successful source should report its count: %#v", src)
	}
	if len(store.merged) != 5 {
		t.Fatalf("partial data must still be persisted, got %d pairs", len(store.merged))
	}
	if len(store.history) != 5 {
		t.Fatalf("history should have one entry per fetched rate, got %d", len(store.history))
	}
}

func TestRunUpdateTotalFailure(t *testing.T) {
	a := &stubClient{name: "A", err: errors.New("down")}
	b := &stubClient{name: "B", err: errors.New("also down")}

	store := &memStore{}
	sync := New([]fetcher.Client{a, b}, store, nil, zerolog.Nop())

	_, err := sync.RunUpdate(context.Background())
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("all sources failing should escalate, got %v", err)
	}
	if store.writes != 0 {
		t.Fatal("snapshot must be left unmodified on total failure")
	}
}

func TestRunUpdateConflictLaterClientWins(t *testing.T) {
	first := &stubClient{
		name:  "First",
		pairs: map[string]float64{"BTC_USD": 1},
		meta:  rates.FetchMeta{Source: "First", Timestamp: "2025-01-01T00:00:00Z"},
	}
	second := &stubClient{
		name:  "Second",
		pairs: map[string]float64{"BTC_USD": 2},
		meta:  rates.FetchMeta{Source: "Second", Timestamp: "2025-01-01T00:00:00Z"},
	}

	store := &memStore{}
	sync := New([]fetcher.Client{first, second}, store, nil, zerolog.Nop())

	if _, err := sync.RunUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}

	point := store.merged["BTC_USD"]
	if point.Rate != 2 || point.Source != "Second" {
		t.Fatalf("later client in configured order should win intra-run conflicts: %#v", point)
	}
}

func TestRunUpdateFallbackTimestamp(t *testing.T) {
	// Client supplies no provider timestamp; points inherit the shared
	// run timestamp issued before any client was invoked.
	client := &stubClient{
		name:  "Bare",
		pairs: map[string]float64{"ETH_USD": 3000},
		meta:  rates.FetchMeta{Source: "Bare"},
	}

	store := &memStore{}
	sync := New([]fetcher.Client{client}, store, nil, zerolog.Nop())

	report, err := sync.RunUpdate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := store.merged["ETH_USD"].UpdatedAt; got != report.LastRefresh {
		t.Fatalf("point should inherit run timestamp, got %s want %s", got, report.LastRefresh)
	}
}

func TestRunUpdateHistoryIDsDeterministic(t *testing.T) {
	client := &stubClient{
		name:  "Src",
		pairs: map[string]float64{"BTC_USD": 50000},
		meta:  rates.FetchMeta{Source: "Src", Timestamp: "2025-01-01T00:00:00Z"},
	}

	store := &memStore{}
	sync := New([]fetcher.Client{client}, store, map[string]string{"BTC": "bitcoin"}, zerolog.Nop())

	if _, err := sync.RunUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}

	entry := store.history[0]
	if entry.ID != "BTC_USD_2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected history id: %s", entry.ID)
	}
	if entry.Meta.RawID != "bitcoin" {
		t.Fatalf("raw provider id should be folded into meta: %#v", entry.Meta)
	}
}

func TestRunUpdateNoClients(t *testing.T) {
	sync := New(nil, &memStore{}, nil, zerolog.Nop())
	if _, err := sync.RunUpdate(context.Background()); !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("no clients should escalate as total failure, got %v", err)
	}
}
