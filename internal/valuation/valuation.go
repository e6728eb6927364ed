package valuation

import (
	"strings"

	"github.com/shopspring/decimal"

	"ratehub/internal/resolver"
)

// RateSource is the slice of the resolver the converter needs.
type RateSource interface {
	GetRate(from, to string) (resolver.Rate, error)
}

// Converter turns a balance in one currency into another using the
// resolver's rates. Backs the convert command.
type Converter struct {
	rates RateSource
}

// NewConverter wires a rate source into a Converter.
func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// Convert values amount units of from in to. Identical codes short-cut
// to the amount unchanged, bypassing the resolver and any rounding a
// self-referential lookup would introduce.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return amount, nil
	}

	rate, err := c.rates.GetRate(from, to)
	if err != nil {
		return 0, err
	}

	value := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate.Rate))
	return value.InexactFloat64(), nil
}
