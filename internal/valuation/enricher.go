// Package valuation converts raw transfer amounts into token quantities and
// prices them in the reference asset and in USD.
package valuation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// PriceSource resolves a token price. Implementations report false when the
// price is unavailable.
type PriceSource interface {
	Price(ctx context.Context, tokenID string) (float64, bool)
}

// Enricher values transfers. It never fails: anything it cannot price is
// left absent on the returned Valuation.
type Enricher struct {
	prices      PriceSource
	referenceID string
}

// NewEnricher creates an Enricher. referenceID is the token whose oracle
// price is quoted in USD; every other token is quoted in it.
func NewEnricher(prices PriceSource, referenceID string) *Enricher {
	return &Enricher{prices: prices, referenceID: referenceID}
}

// Enrich values t using info's decimals (zero for unregistered tokens).
func (e *Enricher) Enrich(ctx context.Context, t domain.Transfer, info domain.TokenInfo) domain.Valuation {
	v := domain.Valuation{DisplayAmount: DisplayAmount(t.Amount)}
	if !t.Amount.Valid {
		return v
	}

	qty := Quantity(t.Amount.Value, info.Decimals)
	v.Quantity = decimal.NewNullDecimal(qty)

	tokenPrice := decimal.NewFromInt(1)
	if t.TokenID != e.referenceID {
		p, ok := e.prices.Price(ctx, t.TokenID)
		if !ok {
			return v
		}
		tokenPrice = decimal.NewFromFloat(p)
	}

	refUSD, ok := e.prices.Price(ctx, e.referenceID)
	if !ok {
		return v
	}

	inRef := qty.Mul(tokenPrice)
	v.ValueInReference = decimal.NewNullDecimal(inRef)
	v.ValueInUSD = decimal.NewNullDecimal(inRef.Mul(decimal.NewFromFloat(refUSD)))
	return v
}

// Quantity scales a raw integer amount down by 10^decimals.
func Quantity(raw decimal.Decimal, decimals uint8) decimal.Decimal {
	return raw.Shift(-int32(decimals))
}
