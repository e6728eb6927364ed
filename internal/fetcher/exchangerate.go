package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/rates"
)

const exchangeRateSource = "ExchangeRate-API"

// ExchangeRateOptions parameterise the fiat price client.
type ExchangeRateOptions struct {
	BaseURL      string
	APIKey       string
	Symbols      []string
	BaseCurrency string
	Timeout      time.Duration
}

// ExchangeRate fetches fiat rates from ExchangeRate-API. The provider
// quotes 1 BASE = v CODE; the client inverts to the canonical
// CODE_BASE direction before returning.
type ExchangeRate struct {
	opts     ExchangeRateOptions
	logger   zerolog.Logger
	client   *http.Client
	baseURL  string
	lastMeta rates.FetchMeta
}

// NewExchangeRate constructs the client.
func NewExchangeRate(opts ExchangeRateOptions, logger zerolog.Logger) *ExchangeRate {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://v6.exchangerate-api.com/v6"
	}

	return &ExchangeRate{
		opts:    opts,
		logger:  logger.With().Str("component", "exchangerate_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in reports and audit history.
func (e *ExchangeRate) Name() string { return exchangeRateSource }

// LastMeta returns metadata for the most recent successful fetch.
func (e *ExchangeRate) LastMeta() rates.FetchMeta { return e.lastMeta }

type exchangeRatePayload struct {
	Result            string             `json:"result"`
	ErrorType         string             `json:"error-type"`
	Rates             map[string]float64 `json:"rates"`
	TimeLastUpdateUTC string             `json:"time_last_update_utc"`
}

// Fetch retrieves the latest table for the base currency and inverts
// each configured symbol into a CODE_BASE pair.
func (e *ExchangeRate) Fetch(ctx context.Context) (map[string]float64, rates.FetchMeta, error) {
	if e.opts.APIKey == "" {
		return nil, rates.FetchMeta{}, newError(exchangeRateSource, KindAuth, 0, "api key not configured")
	}

	base := strings.ToUpper(e.opts.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	endpoint := e.baseURL + "/" + e.opts.APIKey + "/latest/" + base
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(exchangeRateSource, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(exchangeRateSource, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(started).Milliseconds()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(exchangeRateSource, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rates.FetchMeta{}, statusError(exchangeRateSource, resp.StatusCode, string(body))
	}

	var payload exchangeRatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, rates.FetchMeta{}, newError(exchangeRateSource, KindMalformed, resp.StatusCode, "decode payload: "+err.Error())
	}
	if payload.Result != "success" {
		reason := payload.ErrorType
		if reason == "" {
			reason = "unknown"
		}
		return nil, rates.FetchMeta{}, newError(exchangeRateSource, KindMalformed, resp.StatusCode, "provider error: "+reason)
	}

	// The provider reports when its own table was last refreshed;
	// prefer that over the fetch time.
	timestamp := rates.FormatTime(time.Now())
	if payload.TimeLastUpdateUTC != "" {
		if parsed, perr := time.Parse(time.RFC1123, payload.TimeLastUpdateUTC); perr == nil {
			timestamp = rates.FormatTime(parsed)
		}
	}

	out := make(map[string]float64, len(e.opts.Symbols))
	for _, code := range e.opts.Symbols {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || code == base {
			continue
		}
		raw, ok := payload.Rates[code]
		if !ok {
			continue
		}
		if raw == 0 {
			return nil, rates.FetchMeta{}, newError(exchangeRateSource, KindMalformed, resp.StatusCode, "zero rate for "+code)
		}
		out[rates.Key(code, base)] = 1.0 / raw
	}

	meta := rates.FetchMeta{
		Source:     exchangeRateSource,
		Timestamp:  timestamp,
		RequestMS:  elapsed,
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
	}
	e.lastMeta = meta

	e.logger.Debug().Int("pairs", len(out)).Int64("request_ms", elapsed).Msg("fetched fiat rates")
	return out, meta, nil
}

var _ Client = (*ExchangeRate)(nil)
