package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/rates"
)

const coinGeckoSource = "CoinGecko"

// CoinGeckoOptions parameterise the crypto price client.
type CoinGeckoOptions struct {
	BaseURL      string
	Coins        map[string]string // currency code -> coin id
	BaseCurrency string
	Timeout      time.Duration
	UserAgent    string
}

// CoinGecko fetches crypto spot prices from the CoinGecko simple-price
// endpoint, which returns a map of coin-id -> {base-currency: price}.
type CoinGecko struct {
	opts     CoinGeckoOptions
	logger   zerolog.Logger
	client   *http.Client
	baseURL  string
	lastMeta rates.FetchMeta
}

// NewCoinGecko constructs the client.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in reports and audit history.
func (c *CoinGecko) Name() string { return coinGeckoSource }

// LastMeta returns metadata for the most recent successful fetch.
func (c *CoinGecko) LastMeta() rates.FetchMeta { return c.lastMeta }

// Fetch retrieves prices for every configured coin and normalizes them
// into CODE_BASE pairs.
func (c *CoinGecko) Fetch(ctx context.Context) (map[string]float64, rates.FetchMeta, error) {
	if len(c.opts.Coins) == 0 {
		return nil, rates.FetchMeta{}, newError(coinGeckoSource, KindMalformed, 0, "no coins configured")
	}

	base := strings.ToUpper(c.opts.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	ids := make([]string, 0, len(c.opts.Coins))
	for _, id := range c.opts.Coins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", strings.ToLower(base))

	endpoint := c.baseURL + "/simple/price?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(coinGeckoSource, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(coinGeckoSource, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(started).Milliseconds()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(coinGeckoSource, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rates.FetchMeta{}, statusError(coinGeckoSource, resp.StatusCode, string(body))
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, rates.FetchMeta{}, newError(coinGeckoSource, KindMalformed, resp.StatusCode, "decode payload: "+err.Error())
	}

	out := make(map[string]float64, len(c.opts.Coins))
	vs := strings.ToLower(base)
	for code, coinID := range c.opts.Coins {
		prices, ok := payload[coinID]
		if !ok {
			continue
		}
		price, ok := prices[vs]
		if !ok {
			continue
		}
		if price == 0 {
			return nil, rates.FetchMeta{}, newError(coinGeckoSource, KindMalformed, resp.StatusCode, "zero price for "+coinID)
		}
		out[rates.Key(code, base)] = price
	}

	meta := rates.FetchMeta{
		Source:     coinGeckoSource,
		Timestamp:  rates.FormatTime(time.Now()),
		RequestMS:  elapsed,
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
	}
	c.lastMeta = meta

	c.logger.Debug().Int("pairs", len(out)).Int64("request_ms", elapsed).Msg("fetched crypto rates")
	return out, meta, nil
}

var _ Client = (*CoinGecko)(nil)
