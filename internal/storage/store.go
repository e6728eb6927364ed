package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"ratehub/internal/config"
	"ratehub/internal/rates"
)

// Store persists the rate snapshot and the append-only history as
// human-readable JSON files. Writes go through a temp-file-and-rename
// so readers observe either the old or the fully-new file, never a mix.
// A single writer lock serializes the read-modify-write merge step.
type Store struct {
	snapshotPath string
	historyPath  string
	logger       zerolog.Logger

	mu sync.Mutex
}

// NewStore resolves file locations and ensures the data directory exists.
func NewStore(cfg config.StorageConfig, logger zerolog.Logger) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data dir not configured")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	snapshotFile := cfg.SnapshotFile
	if snapshotFile == "" {
		snapshotFile = "rates.json"
	}
	historyFile := cfg.HistoryFile
	if historyFile == "" {
		historyFile = "exchange_rates.json"
	}

	return &Store{
		snapshotPath: filepath.Join(cfg.DataDir, snapshotFile),
		historyPath:  filepath.Join(cfg.DataDir, historyFile),
		logger:       logger.With().Str("component", "storage").Logger(),
	}, nil
}

// ReadSnapshot returns the current snapshot. It never fails: a missing
// or corrupt file yields an empty snapshot, with corruption logged.
func (s *Store) ReadSnapshot() rates.Snapshot {
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.snapshotPath).Msg("snapshot unreadable, starting empty")
		}
		return rates.NewSnapshot()
	}

	var snap rates.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn().Err(err).Str("path", s.snapshotPath).Msg("snapshot corrupt, starting empty")
		return rates.NewSnapshot()
	}
	if snap.Pairs == nil {
		snap.Pairs = make(map[string]rates.Point)
	}
	return snap
}

// MergeWrite folds freshly fetched pairs into the stored snapshot.
// Per key: absent pairs are inserted; present pairs are replaced only
// when the incoming point is strictly newer. A timestamp that fails to
// parse on either side defaults to replace, so a corrupt entry cannot
// wedge permanently.
func (s *Store) MergeWrite(pairs map[string]rates.Point, refreshedAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.ReadSnapshot()
	for key, incoming := range pairs {
		existing, ok := snap.Pairs[key]
		if !ok || newerThan(incoming.UpdatedAt, existing.UpdatedAt) {
			snap.Pairs[key] = incoming
		}
	}
	snap.LastRefresh = &refreshedAt

	if err := writeJSONAtomic(s.snapshotPath, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// newerThan reports whether the incoming timestamp is strictly newer
// than the stored one, defaulting to true when either fails to parse.
func newerThan(incoming, existing string) bool {
	in, err := rates.ParseTime(incoming)
	if err != nil {
		return true
	}
	ex, err := rates.ParseTime(existing)
	if err != nil {
		return true
	}
	return in.After(ex)
}

// ReadHistory loads the full audit history.
func (s *Store) ReadHistory() ([]rates.HistoryEntry, error) {
	raw, err := os.ReadFile(s.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []rates.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// AppendHistory appends entries whose ids are not yet present. History
// is append-only and never rewritten; duplicates are silently dropped.
func (s *Store) AppendHistory(entries []rates.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.ReadHistory()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(history))
	for _, e := range history {
		seen[e.ID] = struct{}{}
	}

	appended := 0
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		history = append(history, e)
		appended++
	}
	if appended == 0 {
		return nil
	}

	if err := writeJSONAtomic(s.historyPath, history); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// writeJSONAtomic marshals v and replaces path via a temp file in the
// same directory followed by an atomic rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
