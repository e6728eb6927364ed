package rates

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format for every persisted timestamp: UTC,
// second precision, RFC3339 with a literal Z suffix.
const TimeLayout = "2006-01-02T15:04:05Z"

// Key builds the canonical "FROM_TO" identifier for a directed pair.
func Key(from, to string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + "_" + strings.ToUpper(strings.TrimSpace(to))
}

// SplitKey breaks a pair key back into its currency codes.
func SplitKey(key string) (from, to string, err error) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed pair key %q", key)
	}
	return parts[0], parts[1], nil
}

// Now returns the current UTC time truncated to second precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatTime renders a timestamp in the wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// ParseTime parses a wire-format timestamp. It tolerates any RFC3339
// offset so snapshots written by other tooling stay readable.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Point is one known conversion rate: 1 unit of the pair's from-code
// equals Rate units of the to-code. UpdatedAt stays a string so a
// corrupt value surfaces at comparison time rather than wedging the
// whole snapshot at decode time.
type Point struct {
	Rate      float64 `json:"rate"`
	UpdatedAt string  `json:"updated_at"`
	Source    string  `json:"source"`
}

// Snapshot is the complete current set of known pairs. The map may hold
// a pair and its logical inverse as independently fetched entries;
// consumers must not assume symmetry is pre-computed.
type Snapshot struct {
	Pairs       map[string]Point `json:"pairs"`
	LastRefresh *string          `json:"last_refresh"`
}

// NewSnapshot returns an empty snapshot ready for use.
func NewSnapshot() Snapshot {
	return Snapshot{Pairs: make(map[string]Point)}
}

// Clone deep-copies the snapshot so cached copies cannot alias store state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Pairs: make(map[string]Point, len(s.Pairs))}
	for k, v := range s.Pairs {
		out.Pairs[k] = v
	}
	if s.LastRefresh != nil {
		lr := *s.LastRefresh
		out.LastRefresh = &lr
	}
	return out
}

// EntryMeta carries per-fetch diagnostics folded into a history entry.
type EntryMeta struct {
	RawID      string `json:"raw_id,omitempty"`
	RequestMS  int64  `json:"request_ms"`
	StatusCode int    `json:"status_code"`
	ETag       string `json:"etag,omitempty"`
}

// HistoryEntry is one immutable rate observation. ID is the dedup key;
// appending an entry whose id already exists is a no-op.
type HistoryEntry struct {
	ID           string    `json:"id"`
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Rate         float64   `json:"rate"`
	Timestamp    string    `json:"timestamp"`
	Source       string    `json:"source"`
	Meta         EntryMeta `json:"meta"`
}

// EntryID derives the deterministic history id for a fetched rate, so
// re-running with identical provider data cannot duplicate history.
func EntryID(from, to, timestamp string) string {
	return Key(from, to) + "_" + timestamp
}

// FetchMeta describes one client fetch. Timestamp is the provider's own
// data timestamp when it supplies one, otherwise the fetch time.
type FetchMeta struct {
	Source     string
	Timestamp  string
	RequestMS  int64
	StatusCode int
	ETag       string
}

// SourceReport is the per-client slice of a SyncReport.
type SourceReport struct {
	OK    bool   `json:"ok"`
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
}

// SyncReport summarises one synchronizer run. OK is true only when no
// client failed; partial data is still committed either way.
type SyncReport struct {
	OK          bool                    `json:"ok"`
	Total       int                     `json:"total"`
	LastRefresh string                  `json:"last_refresh"`
	Errors      []string                `json:"errors"`
	Sources     map[string]SourceReport `json:"sources"`
}
