package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ratehub/internal/rates"
)

// Client fetches a batch of prices from one external provider and
// normalizes them into canonical quote-in-base pairs. Implementations
// keep no state across calls beyond the last fetch metadata.
type Client interface {
	Name() string
	Fetch(ctx context.Context) (map[string]float64, rates.FetchMeta, error)
}

// Kind classifies a fetch failure for reporting and diagnostics.
type Kind string

const (
	KindTransport Kind = "transport"
	KindRateLimit Kind = "rate_limit"
	KindAuth      Kind = "auth"
	KindServer    Kind = "server"
	KindMalformed Kind = "malformed"
)

// Error is a classified fetch failure from one source.
type Error struct {
	Source     string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Source, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a fetch error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

func newError(source string, kind Kind, status int, msg string) *Error {
	return &Error{Source: source, Kind: kind, StatusCode: status, Message: msg}
}

func wrapTransport(source string, err error) *Error {
	return &Error{Source: source, Kind: KindTransport, Err: err}
}

// statusError classifies a non-200 HTTP response: 429 rate limit,
// 401/403 auth, 5xx server, everything else transport.
func statusError(source string, status int, body string) *Error {
	kind := KindTransport
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status >= 500 && status <= 599:
		kind = KindServer
	}
	return newError(source, kind, status, truncate(body, 200))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
