package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"ratehub/internal/config"
	"ratehub/internal/rates"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.StorageConfig{DataDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestReadSnapshotEmptyOnFirstUse(t *testing.T) {
	store := newStoreForTest(t)
	snap := store.ReadSnapshot()
	if len(snap.Pairs) != 0 {
		t.Fatalf("first read should be empty, got %d pairs", len(snap.Pairs))
	}
	if snap.LastRefresh != nil {
		t.Fatal("first read should have nil last_refresh")
	}
}

func TestReadSnapshotCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(config.StorageConfig{DataDir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rates.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	snap := store.ReadSnapshot()
	if len(snap.Pairs) != 0 {
		t.Fatal("corrupt snapshot should read as empty")
	}
}

func TestMergeWriteInsertAndRecency(t *testing.T) {
	store := newStoreForTest(t)

	older := map[string]rates.Point{
		"BTC_USD": {Rate: 40000, UpdatedAt: "2025-01-01T00:00:00Z", Source: "a"},
	}
	newer := map[string]rates.Point{
		"BTC_USD": {Rate: 50000, UpdatedAt: "2025-01-02T00:00:00Z", Source: "b"},
	}

	// Recency must hold regardless of call order.
	if err := store.MergeWrite(newer, "2025-01-02T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := store.MergeWrite(older, "2025-01-03T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	snap := store.ReadSnapshot()
	if got := snap.Pairs["BTC_USD"]; got.Rate != 50000 || got.Source != "b" {
		t.Fatalf("newer point should win: %#v", got)
	}
	if snap.LastRefresh == nil || *snap.LastRefresh != "2025-01-03T00:00:00Z" {
		t.Fatalf("last_refresh should track the latest run: %v", snap.LastRefresh)
	}
}

func TestMergeWriteIdempotent(t *testing.T) {
	store := newStoreForTest(t)
	payload := map[string]rates.Point{
		"ETH_USD": {Rate: 3000, UpdatedAt: "2025-01-01T00:00:00Z", Source: "a"},
		"EUR_USD": {Rate: 1.1, UpdatedAt: "2025-01-01T00:00:00Z", Source: "b"},
	}

	if err := store.MergeWrite(payload, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	first := store.ReadSnapshot()

	if err := store.MergeWrite(payload, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	second := store.ReadSnapshot()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("applying the same payload twice must not change the snapshot:\n%#v\n%#v", first, second)
	}
}

func TestMergeWriteCorruptTimestampReplaced(t *testing.T) {
	store := newStoreForTest(t)

	corrupt := map[string]rates.Point{
		"SOL_USD": {Rate: 100, UpdatedAt: "garbage", Source: "a"},
	}
	if err := store.MergeWrite(corrupt, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	// An incoming point replaces a stored entry with an unparsable
	// timestamp even though no ordering can be established.
	fresh := map[string]rates.Point{
		"SOL_USD": {Rate: 120, UpdatedAt: "2020-01-01T00:00:00Z", Source: "b"},
	}
	if err := store.MergeWrite(fresh, "2025-01-02T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if got := store.ReadSnapshot().Pairs["SOL_USD"]; got.Rate != 120 {
		t.Fatalf("corrupt stored entry should be replaced: %#v", got)
	}
}

func TestMergeWritePreservesUnrefreshedPairs(t *testing.T) {
	store := newStoreForTest(t)

	if err := store.MergeWrite(map[string]rates.Point{
		"BTC_USD": {Rate: 50000, UpdatedAt: "2025-01-01T00:00:00Z", Source: "a"},
	}, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if err := store.MergeWrite(map[string]rates.Point{
		"EUR_USD": {Rate: 1.1, UpdatedAt: "2025-01-02T00:00:00Z", Source: "b"},
	}, "2025-01-02T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	snap := store.ReadSnapshot()
	if len(snap.Pairs) != 2 {
		t.Fatalf("prior pairs must survive a partial refresh: %#v", snap.Pairs)
	}
}

func TestAppendHistoryDedup(t *testing.T) {
	store := newStoreForTest(t)

	batch1 := []rates.HistoryEntry{
		{ID: "BTC_USD_2025-01-01T00:00:00Z", FromCurrency: "BTC", ToCurrency: "USD", Rate: 50000},
		{ID: "ETH_USD_2025-01-01T00:00:00Z", FromCurrency: "ETH", ToCurrency: "USD", Rate: 3000},
	}
	batch2 := []rates.HistoryEntry{
		{ID: "ETH_USD_2025-01-01T00:00:00Z", FromCurrency: "ETH", ToCurrency: "USD", Rate: 3000},
		{ID: "EUR_USD_2025-01-01T00:00:00Z", FromCurrency: "EUR", ToCurrency: "USD", Rate: 1.1},
	}

	if err := store.AppendHistory(batch1); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendHistory(batch2); err != nil {
		t.Fatal(err)
	}

	history, err := store.ReadHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history length should equal distinct ids, got %d", len(history))
	}
}

func TestAppendHistoryEmptyNoop(t *testing.T) {
	store := newStoreForTest(t)
	if err := store.AppendHistory(nil); err != nil {
		t.Fatal(err)
	}
	history, err := store.ReadHistory()
	if err != nil {
		t.Fatal(err)
	}
	if history != nil {
		t.Fatalf("no history file should exist yet: %#v", history)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(config.StorageConfig{DataDir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.MergeWrite(map[string]rates.Point{
		"BTC_USD": {Rate: 50000, UpdatedAt: "2025-01-01T00:00:00Z", Source: "a"},
	}, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "rates.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("only the snapshot file should remain: %v", names)
	}
}
