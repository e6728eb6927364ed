package fetcher

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratehub/internal/rates"
)

const chainlinkSource = "Chainlink"

const aggregatorABIJSON = `[
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkOptions parameterise the on-chain price feed client.
type ChainlinkOptions struct {
	RPCURL       string
	Feeds        map[string]string // currency code -> aggregator contract address
	BaseCurrency string
	Timeout      time.Duration
}

// Chainlink reads spot prices from Chainlink aggregator contracts over
// Ethereum RPC. Each feed carries its own on-chain update timestamp,
// which is preferred over the fetch time.
type Chainlink struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	lastMeta  rates.FetchMeta
}

// NewChainlink builds the on-chain client.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	return &Chainlink{opts: opts, logger: logger.With().Str("component", "chainlink_client").Logger()}
}

// Name identifies the source in reports and audit history.
func (c *Chainlink) Name() string { return chainlinkSource }

// LastMeta returns metadata for the most recent successful fetch.
func (c *Chainlink) LastMeta() rates.FetchMeta { return c.lastMeta }

// Fetch reads latestRoundData from every configured feed.
func (c *Chainlink) Fetch(ctx context.Context) (map[string]float64, rates.FetchMeta, error) {
	if c.opts.RPCURL == "" {
		return nil, rates.FetchMeta{}, newError(chainlinkSource, KindTransport, 0, "ethereum rpc url not configured")
	}
	if len(c.opts.Feeds) == 0 {
		return nil, rates.FetchMeta{}, newError(chainlinkSource, KindMalformed, 0, "no feeds configured")
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, rates.FetchMeta{}, wrapTransport(chainlinkSource, err)
	}

	base := strings.ToUpper(c.opts.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	codes := make([]string, 0, len(c.opts.Feeds))
	for code := range c.opts.Feeds {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	started := time.Now()
	out := make(map[string]float64, len(codes))
	var newest time.Time

	for _, code := range codes {
		addr := common.HexToAddress(c.opts.Feeds[code])

		price, updatedAt, err := c.readFeed(ctx, client, addr)
		if err != nil {
			return nil, rates.FetchMeta{}, err
		}

		out[rates.Key(code, base)] = price
		if updatedAt.After(newest) {
			newest = updatedAt
		}
	}

	timestamp := rates.FormatTime(time.Now())
	if !newest.IsZero() {
		timestamp = rates.FormatTime(newest)
	}

	meta := rates.FetchMeta{
		Source:    chainlinkSource,
		Timestamp: timestamp,
		RequestMS: time.Since(started).Milliseconds(),
	}
	c.lastMeta = meta

	c.logger.Debug().Int("pairs", len(out)).Msg("fetched on-chain rates")
	return out, meta, nil
}

func (c *Chainlink) readFeed(ctx context.Context, client *ethclient.Client, addr common.Address) (float64, time.Time, error) {
	answer, updatedAt, err := c.callLatestRoundData(ctx, client, addr)
	if err != nil {
		return 0, time.Time{}, err
	}
	if answer.Sign() <= 0 {
		return 0, time.Time{}, newError(chainlinkSource, KindMalformed, 0, "non-positive answer from feed "+addr.Hex())
	}

	decimals, err := c.callDecimals(ctx, client, addr)
	if err != nil {
		return 0, time.Time{}, err
	}

	price := decimal.NewFromBigInt(answer, -int32(decimals)).InexactFloat64()
	return price, time.Unix(updatedAt.Int64(), 0).UTC(), nil
}

func (c *Chainlink) callLatestRoundData(ctx context.Context, client *ethclient.Client, addr common.Address) (*big.Int, *big.Int, error) {
	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return nil, nil, wrapTransport(chainlinkSource, err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, nil, wrapTransport(chainlinkSource, err)
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil || len(outputs) != 5 {
		return nil, nil, newError(chainlinkSource, KindMalformed, 0, "unexpected latestRoundData response from "+addr.Hex())
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return nil, nil, newError(chainlinkSource, KindMalformed, 0, "failed to decode answer from "+addr.Hex())
	}
	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return nil, nil, newError(chainlinkSource, KindMalformed, 0, "failed to decode updatedAt from "+addr.Hex())
	}
	return answer, updatedAt, nil
}

func (c *Chainlink) callDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) (uint8, error) {
	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, wrapTransport(chainlinkSource, err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, wrapTransport(chainlinkSource, err)
	}

	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil || len(outputs) != 1 {
		return 0, newError(chainlinkSource, KindMalformed, 0, "unexpected decimals response from "+addr.Hex())
	}

	decimals, ok := outputs[0].(uint8)
	if !ok {
		return 0, newError(chainlinkSource, KindMalformed, 0, "failed to decode decimals from "+addr.Hex())
	}
	return decimals, nil
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

var _ Client = (*Chainlink)(nil)
