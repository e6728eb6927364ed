package currency

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrNotFound reports a currency code absent from the registry.
var ErrNotFound = errors.New("currency not found")

var codeRe = regexp.MustCompile(`^[A-Z]{2,5}$`)

// Kind distinguishes fiat from crypto currencies. It only drives
// registry validation and display, never hot-path behaviour.
type Kind string

const (
	KindFiat   Kind = "fiat"
	KindCrypto Kind = "crypto"
)

// Currency describes one supported currency.
type Currency struct {
	Code           string
	Name           string
	Kind           Kind
	IssuingCountry string
	Algorithm      string
	MarketCap      float64
}

// DisplayInfo renders the registry line for listings.
func (c Currency) DisplayInfo() string {
	if c.Kind == KindCrypto {
		return fmt.Sprintf("[CRYPTO] %s - %s (Algo: %s, MCAP: %.2e)", c.Code, c.Name, c.Algorithm, c.MarketCap)
	}
	return fmt.Sprintf("[FIAT] %s - %s (Issuing: %s)", c.Code, c.Name, c.IssuingCountry)
}

// Registry holds the supported currency set. It is immutable after
// construction and safe for concurrent readers.
type Registry struct {
	byCode map[string]Currency
}

// NewRegistry builds the default supported set.
func NewRegistry() *Registry {
	entries := []Currency{
		{Code: "USD", Name: "US Dollar", Kind: KindFiat, IssuingCountry: "United States"},
		{Code: "EUR", Name: "Euro", Kind: KindFiat, IssuingCountry: "Eurozone"},
		{Code: "GBP", Name: "British Pound", Kind: KindFiat, IssuingCountry: "United Kingdom"},
		{Code: "JPY", Name: "Japanese Yen", Kind: KindFiat, IssuingCountry: "Japan"},
		{Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, IssuingCountry: "Russia"},
		{Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Algorithm: "SHA-256", MarketCap: 1.12e12},
		{Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Algorithm: "Ethash", MarketCap: 4.50e11},
		{Code: "SOL", Name: "Solana", Kind: KindCrypto, Algorithm: "PoH", MarketCap: 7.00e10},
	}

	byCode := make(map[string]Currency, len(entries))
	for _, c := range entries {
		byCode[c.Code] = c
	}
	return &Registry{byCode: byCode}
}

// Validate checks code shape and registry membership. Unknown codes
// fail immediately with ErrNotFound; no network fallback is attempted.
func (r *Registry) Validate(code string) error {
	normalized := normalize(code)
	if !codeRe.MatchString(normalized) {
		return fmt.Errorf("currency code %q must be 2-5 uppercase letters", code)
	}
	if _, ok := r.byCode[normalized]; !ok {
		return fmt.Errorf("currency %q: %w", normalized, ErrNotFound)
	}
	return nil
}

// IsKnown reports whether a code is registered.
func (r *Registry) IsKnown(code string) bool {
	_, ok := r.byCode[normalize(code)]
	return ok
}

// Get returns the registry entry for a code.
func (r *Registry) Get(code string) (Currency, error) {
	c, ok := r.byCode[normalize(code)]
	if !ok {
		return Currency{}, fmt.Errorf("currency %q: %w", normalize(code), ErrNotFound)
	}
	return c, nil
}

// Codes lists the supported codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
