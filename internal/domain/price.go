package domain

import (
	"context"
	"time"
)

// PriceQuote is a positive price for a token, denominated in the reference
// asset (or in USD for the reference asset itself).
type PriceQuote struct {
	TokenID   string
	Price     float64
	FetchedAt time.Time
}

// Age returns how old the quote is at now.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// PriceStore is a shared tier behind the in-process price cache, used when
// several replicas should share oracle results. Only quotes with a finite
// freshness bound are stored there.
type PriceStore interface {
	LoadQuote(ctx context.Context, tokenID string) (PriceQuote, error)
	SaveQuote(ctx context.Context, q PriceQuote, ttl time.Duration) error
	DeleteQuote(ctx context.Context, tokenID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
