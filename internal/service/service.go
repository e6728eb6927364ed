package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ratehub/internal/fetcher"
	"ratehub/internal/rates"
)

// ErrAllSourcesFailed reports a run in which no source produced data.
// It indicates total external unavailability and is escalated rather
// than folded into a soft report.
var ErrAllSourcesFailed = errors.New("no rates fetched from any source")

// SnapshotStore is the slice of the storage layer the synchronizer needs.
type SnapshotStore interface {
	MergeWrite(pairs map[string]rates.Point, refreshedAt string) error
	AppendHistory(entries []rates.HistoryEntry) error
}

// Synchronizer orchestrates all configured clients and merges their
// output into one snapshot write plus audit history.
type Synchronizer struct {
	clients []fetcher.Client
	store   SnapshotStore
	logger  zerolog.Logger
	rawIDs  map[string]string // currency code -> provider-native id, for history meta
	now     func() time.Time
}

// New constructs a Synchronizer. Client order matters: for duplicate
// pair keys within one run, the later client in this slice wins.
func New(clients []fetcher.Client, store SnapshotStore, rawIDs map[string]string, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		clients: clients,
		store:   store,
		logger:  logger.With().Str("component", "synchronizer").Logger(),
		rawIDs:  rawIDs,
		now:     time.Now,
	}
}

type fetchResult struct {
	pairs map[string]float64
	meta  rates.FetchMeta
	err   error
}

// RunUpdate fetches every client, merges the results, and commits the
// snapshot and history. One client's failure never aborts the others;
// partial data is committed with ok=false. The only hard failure is a
// run where every source failed, which leaves the snapshot untouched.
func (s *Synchronizer) RunUpdate(ctx context.Context) (rates.SyncReport, error) {
	lastRefresh := rates.FormatTime(s.now())

	report := rates.SyncReport{
		LastRefresh: lastRefresh,
		Errors:      []string{},
		Sources:     make(map[string]rates.SourceReport, len(s.clients)),
	}
	if len(s.clients) == 0 {
		return report, fmt.Errorf("%w: no clients configured", ErrAllSourcesFailed)
	}

	s.logger.Info().Int("clients", len(s.clients)).Msg("starting rates update")

	// Clients own disjoint provider endpoints, so the fetches run in
	// parallel; merge order below restores the configured precedence.
	results := make([]fetchResult, len(s.clients))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, client := range s.clients {
		group.Go(func() error {
			pairs, meta, err := client.Fetch(groupCtx)
			results[i] = fetchResult{pairs: pairs, meta: meta, err: err}
			return nil
		})
	}
	_ = group.Wait()

	combined := make(map[string]rates.Point)
	var history []rates.HistoryEntry

	for i, client := range s.clients {
		name := client.Name()
		res := results[i]

		if res.err != nil {
			msg := fmt.Sprintf("Failed to fetch from %s: %v", name, res.err)
			report.Errors = append(report.Errors, msg)
			report.Sources[name] = rates.SourceReport{OK: false, Error: res.err.Error()}
			s.logger.Error().Err(res.err).Str("source", name).Msg("source fetch failed")
			continue
		}

		updatedAt := res.meta.Timestamp
		if updatedAt == "" {
			updatedAt = lastRefresh
		}
		source := res.meta.Source
		if source == "" {
			source = name
		}

		count := 0
		for key, rate := range res.pairs {
			from, to, err := rates.SplitKey(key)
			if err != nil {
				s.logger.Warn().Str("source", name).Str("key", key).Msg("skipping malformed pair key")
				continue
			}

			combined[key] = rates.Point{Rate: rate, UpdatedAt: updatedAt, Source: source}
			history = append(history, rates.HistoryEntry{
				ID:           rates.EntryID(from, to, updatedAt),
				FromCurrency: from,
				ToCurrency:   to,
				Rate:         rate,
				Timestamp:    updatedAt,
				Source:       source,
				Meta: rates.EntryMeta{
					RawID:      s.rawIDs[from],
					RequestMS:  res.meta.RequestMS,
					StatusCode: res.meta.StatusCode,
					ETag:       res.meta.ETag,
				},
			})
			count++
		}

		report.Total += count
		report.Sources[name] = rates.SourceReport{OK: true, Count: count}
		s.logger.Info().Str("source", name).Int("count", count).Msg("source fetch ok")
	}

	if report.Total == 0 {
		return report, fmt.Errorf("%w: %d sources errored", ErrAllSourcesFailed, len(report.Errors))
	}

	if err := s.store.MergeWrite(combined, lastRefresh); err != nil {
		return report, fmt.Errorf("persist snapshot: %w", err)
	}
	if err := s.store.AppendHistory(history); err != nil {
		return report, fmt.Errorf("persist history: %w", err)
	}

	report.OK = len(report.Errors) == 0
	if report.OK {
		s.logger.Info().Int("total", report.Total).Msg("update successful")
	} else {
		s.logger.Warn().Int("total", report.Total).Int("failed_sources", len(report.Errors)).Msg("update completed with errors")
	}
	return report, nil
}
