// Package pricing resolves token prices through a process-wide cache that
// sits in front of the price oracle.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/solwatch/internal/domain"
	"github.com/alanyoungcy/solwatch/internal/observability"
)

// DefaultReferenceTTL is how long the reference asset's USD quote stays fresh.
const DefaultReferenceTTL = 30 * time.Minute

// Oracle fetches the current price of a single token. Prices for the
// reference asset are in USD; all other prices are in the reference asset.
type Oracle interface {
	FetchPrice(ctx context.Context, tokenID string) (float64, error)
}

// Config controls the cache's freshness policy.
type Config struct {
	// ReferenceID is the token identifier of the reference asset.
	ReferenceID string
	// ReferenceTTL bounds the age of the reference asset quote.
	ReferenceTTL time.Duration
	// TokenTTL bounds the age of every other quote. Zero keeps quotes until
	// Invalidate is called.
	TokenTTL time.Duration
}

// Cache memoizes oracle prices per token. It is safe for concurrent use and
// guarantees at most one outstanding oracle call per token identifier:
// concurrent misses on the same token share a single in-flight fetch.
type Cache struct {
	oracle  Oracle
	store   domain.PriceStore
	cfg     Config
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	quotes map[string]domain.PriceQuote
	flight singleflight.Group
}

// Option customises a Cache.
type Option func(*Cache)

// WithStore adds a shared price tier consulted before the oracle. Tokens
// without a TTL never use it, so each process checks them once.
func WithStore(store domain.PriceStore) Option {
	return func(c *Cache) { c.store = store }
}

// WithMetrics records cache and oracle metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache in front of oracle.
func NewCache(oracle Oracle, cfg Config, logger *slog.Logger, opts ...Option) *Cache {
	if cfg.ReferenceTTL <= 0 {
		cfg.ReferenceTTL = DefaultReferenceTTL
	}
	c := &Cache{
		oracle: oracle,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "price_cache")),
		now:    time.Now,
		quotes: make(map[string]domain.PriceQuote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReferenceID returns the reference asset's token identifier.
func (c *Cache) ReferenceID() string {
	return c.cfg.ReferenceID
}

// Price returns the cached price for tokenID, fetching it from the oracle on a
// miss or when the cached quote is stale. A failed fetch is not cached and
// reports false; the next call tries again.
func (c *Cache) Price(ctx context.Context, tokenID string) (float64, bool) {
	if q, ok := c.fresh(tokenID); ok {
		c.metrics.RecordCacheLookup(true)
		return q.Price, true
	}
	c.metrics.RecordCacheLookup(false)

	v, err, shared := c.flight.Do(tokenID, func() (any, error) {
		// A flight that finished between our miss and this call may have
		// already stored the quote.
		if q, ok := c.fresh(tokenID); ok {
			return q, nil
		}
		return c.resolve(context.WithoutCancel(ctx), tokenID)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "price unavailable",
			slog.String("token", tokenID),
			slog.Bool("shared", shared),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return v.(domain.PriceQuote).Price, true
}

// Invalidate drops the cached quote for tokenID, locally and in the shared
// store, so the next lookup refetches from the oracle. An in-flight fetch is
// not cancelled. The error reports a failed store delete; the local entry is
// dropped regardless.
func (c *Cache) Invalidate(ctx context.Context, tokenID string) error {
	c.mu.Lock()
	delete(c.quotes, tokenID)
	c.mu.Unlock()

	if !c.usesStore(tokenID) {
		return nil
	}
	if err := c.store.DeleteQuote(ctx, tokenID); err != nil {
		return fmt.Errorf("pricing: invalidate %s: %w", tokenID, err)
	}
	return nil
}

// Quote returns the cached quote for tokenID without fetching, regardless of
// freshness.
func (c *Cache) Quote(tokenID string) (domain.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[tokenID]
	return q, ok
}

// Len returns the number of cached quotes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

// ttl returns the freshness bound for tokenID; zero means no expiry.
func (c *Cache) ttl(tokenID string) time.Duration {
	if tokenID == c.cfg.ReferenceID {
		return c.cfg.ReferenceTTL
	}
	return c.cfg.TokenTTL
}

// usesStore reports whether quotes for tokenID go through the store.
func (c *Cache) usesStore(tokenID string) bool {
	return c.store != nil && c.ttl(tokenID) > 0
}

func (c *Cache) isFresh(q domain.PriceQuote) bool {
	ttl := c.ttl(q.TokenID)
	return ttl == 0 || q.Age(c.now()) < ttl
}

func (c *Cache) fresh(tokenID string) (domain.PriceQuote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[tokenID]
	c.mu.RUnlock()
	if !ok || !c.isFresh(q) {
		return domain.PriceQuote{}, false
	}
	return q, true
}

func (c *Cache) put(q domain.PriceQuote) {
	c.mu.Lock()
	c.quotes[q.TokenID] = q
	c.mu.Unlock()
}

// resolve runs inside the single flight for tokenID. It consults the shared
// store first, then the oracle.
func (c *Cache) resolve(ctx context.Context, tokenID string) (domain.PriceQuote, error) {
	if c.usesStore(tokenID) {
		q, err := c.store.LoadQuote(ctx, tokenID)
		switch {
		case err == nil && validPrice(q.Price) && c.isFresh(q):
			c.put(q)
			return q, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			c.logger.WarnContext(ctx, "price store load failed",
				slog.String("token", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	start := c.now()
	price, err := c.oracle.FetchPrice(ctx, tokenID)
	c.metrics.RecordOracleCall(c.now().Sub(start), err)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricing: fetch %s: %w: %w", tokenID, domain.ErrOracleUnavailable, err)
	}
	if !validPrice(price) {
		return domain.PriceQuote{}, fmt.Errorf("pricing: fetch %s: %w: %v", tokenID, domain.ErrInvalidPrice, price)
	}

	q := domain.PriceQuote{TokenID: tokenID, Price: price, FetchedAt: c.now()}
	c.put(q)

	if c.usesStore(tokenID) {
		if err := c.store.SaveQuote(ctx, q, c.ttl(tokenID)); err != nil {
			c.logger.WarnContext(ctx, "price store save failed",
				slog.String("token", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.DebugContext(ctx, "price fetched",
		slog.String("token", tokenID),
		slog.Float64("price", price),
	)
	return q, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
