package resolver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/rates"
)

var (
	// ErrSourceUnavailable means no rate path resolves in the current
	// snapshot. Callers may trigger one synchronization and retry.
	ErrSourceUnavailable = errors.New("no rate available in snapshot")

	// ErrDataCorruption marks a stored rate that cannot be used, such
	// as a zero value that would divide. It also satisfies
	// ErrSourceUnavailable so callers need only one retry path.
	ErrDataCorruption = errors.New("stored rate corrupt")
)

// Registry validates currency codes before any snapshot access.
type Registry interface {
	Validate(code string) error
}

// SnapshotReader supplies the latest persisted snapshot.
type SnapshotReader interface {
	ReadSnapshot() rates.Snapshot
}

// Options tune resolution behaviour.
type Options struct {
	BaseCurrency string
	TTL          time.Duration
}

// Rate is a resolved point-to-point conversion. Stale is advisory: the
// rate is still returned when its age exceeds the TTL.
type Rate struct {
	From      string
	To        string
	Rate      float64
	UpdatedAt string
	Stale     bool
}

// Resolver answers rate queries against the latest snapshot with
// direct, inverse, and base-currency-bridged lookup. Snapshot reads
// are wrapped in a whole-snapshot cache bounded by the TTL, so
// repeated queries inside the window never touch the store.
type Resolver struct {
	reader   SnapshotReader
	registry Registry
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cached   rates.Snapshot
	cachedAt time.Time
	hasCache bool
}

// New constructs a Resolver. TTL defaults to 300s and the base
// currency to USD when unset.
func New(reader SnapshotReader, registry Registry, opts Options, logger zerolog.Logger) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "USD"
	}
	opts.BaseCurrency = strings.ToUpper(opts.BaseCurrency)

	return &Resolver{
		reader:   reader,
		registry: registry,
		opts:     opts,
		logger:   logger.With().Str("component", "resolver").Logger(),
		now:      time.Now,
	}
}

// Invalidate drops the cached snapshot so the next query re-reads the store.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasCache = false
}

func (r *Resolver) snapshot() rates.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasCache && r.now().Sub(r.cachedAt) <= r.opts.TTL {
		return r.cached
	}

	r.cached = r.reader.ReadSnapshot()
	r.cachedAt = r.now()
	r.hasCache = true
	return r.cached
}

// GetRate resolves from→to. Unknown codes fail immediately with the
// registry's error; an unresolvable path fails with
// ErrSourceUnavailable.
func (r *Resolver) GetRate(from, to string) (Rate, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if err := r.registry.Validate(from); err != nil {
		return Rate{}, err
	}
	if err := r.registry.Validate(to); err != nil {
		return Rate{}, err
	}

	snap := r.snapshot()
	rate, updatedAt, err := r.resolve(snap, from, to)
	if err != nil {
		return Rate{}, err
	}

	return Rate{
		From:      from,
		To:        to,
		Rate:      rate,
		UpdatedAt: updatedAt,
		Stale:     r.isStale(updatedAt),
	}, nil
}

// resolve walks the lookup ladder: direct, inverse, then a bridge
// through the base currency.
func (r *Resolver) resolve(snap rates.Snapshot, from, to string) (float64, string, error) {
	if point, ok := snap.Pairs[rates.Key(from, to)]; ok {
		return point.Rate, point.UpdatedAt, nil
	}

	if point, ok := snap.Pairs[rates.Key(to, from)]; ok {
		if point.Rate == 0 {
			return 0, "", corruptionErr("zero rate stored for %s", rates.Key(to, from))
		}
		return 1.0 / point.Rate, point.UpdatedAt, nil
	}

	base := r.opts.BaseCurrency
	if from != base && to != base {
		fromLeg, updatedAt, err := r.resolve(snap, from, base)
		if err != nil {
			return 0, "", err
		}
		toLeg, _, err := r.resolve(snap, to, base)
		if err != nil {
			return 0, "", err
		}
		if toLeg == 0 {
			return 0, "", corruptionErr("zero %s bridge rate for %s", base, to)
		}
		// The from-leg timestamp travels with the combined rate.
		return fromLeg / toLeg, updatedAt, nil
	}

	return 0, "", fmt.Errorf("rate %s_%s: %w", from, to, ErrSourceUnavailable)
}

// isStale compares the point's age against the TTL. An unparsable
// timestamp counts as stale; staleness never blocks the result.
func (r *Resolver) isStale(updatedAt string) bool {
	t, err := rates.ParseTime(updatedAt)
	if err != nil {
		return true
	}
	return r.now().UTC().Sub(t) > r.opts.TTL
}

func corruptionErr(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errors.Join(ErrDataCorruption, ErrSourceUnavailable))...)
}
