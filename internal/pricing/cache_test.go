package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

const refID = "So11111111111111111111111111111111111111112"

// fakeOracle counts calls and optionally blocks until released.
type fakeOracle struct {
	calls   atomic.Int32
	prices  map[string]float64
	err     error
	release chan struct{}
}

func (o *fakeOracle) FetchPrice(ctx context.Context, tokenID string) (float64, error) {
	o.calls.Add(1)
	if o.release != nil {
		<-o.release
	}
	if o.err != nil {
		return 0, o.err
	}
	p, ok := o.prices[tokenID]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return p, nil
}

// memStore is an in-memory domain.PriceStore.
type memStore struct {
	mu     sync.Mutex
	quotes map[string]domain.PriceQuote
	saved  int
}

func (s *memStore) LoadQuote(_ context.Context, id string) (domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	return q, nil
}

func (s *memStore) SaveQuote(_ context.Context, q domain.PriceQuote, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotes == nil {
		s.quotes = make(map[string]domain.PriceQuote)
	}
	s.quotes[q.TokenID] = q
	s.saved++
	return nil
}

func (s *memStore) DeleteQuote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, id)
	return nil
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.quotes[id]
	return ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCache_HitAfterFirstFetch(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"T1": 0.02}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	for i := 0; i < 3; i++ {
		p, ok := c.Price(context.Background(), "T1")
		require.True(t, ok)
		assert.Equal(t, 0.02, p)
	}
	assert.Equal(t, int32(1), oracle.calls.Load())
}

func TestCache_ReferenceQuoteExpires(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	oracle := &fakeOracle{prices: map[string]float64{refID: 150, "T1": 0.02}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger(), WithClock(clk.Now))
	ctx := context.Background()

	_, ok := c.Price(ctx, refID)
	require.True(t, ok)
	_, ok = c.Price(ctx, "T1")
	require.True(t, ok)
	require.Equal(t, int32(2), oracle.calls.Load())

	clk.Advance(29 * time.Minute)
	c.Price(ctx, refID)
	assert.Equal(t, int32(2), oracle.calls.Load(), "reference quote still fresh")

	clk.Advance(2 * time.Minute)
	c.Price(ctx, refID)
	assert.Equal(t, int32(3), oracle.calls.Load(), "reference quote refetched after TTL")

	clk.Advance(24 * time.Hour)
	c.Price(ctx, "T1")
	assert.Equal(t, int32(3), oracle.calls.Load(), "token quotes never expire by default")
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"T1": 1}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())
	ctx := context.Background()

	c.Price(ctx, "T1")
	require.NoError(t, c.Invalidate(ctx, "T1"))
	c.Price(ctx, "T1")

	assert.Equal(t, int32(2), oracle.calls.Load())
}

func TestCache_InvalidateClearsSharedStore(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	store := &memStore{}
	oracle := &fakeOracle{prices: map[string]float64{"T1": 1}}
	cfg := Config{ReferenceID: refID, TokenTTL: time.Hour}
	c := NewCache(oracle, cfg, testLogger(), WithStore(store), WithClock(clk.Now))
	ctx := context.Background()

	p, _ := c.Price(ctx, "T1")
	require.Equal(t, 1.0, p)
	require.True(t, store.has("T1"))

	oracle.prices["T1"] = 2
	require.NoError(t, c.Invalidate(ctx, "T1"))
	assert.False(t, store.has("T1"))

	p, ok := c.Price(ctx, "T1")
	require.True(t, ok)
	assert.Equal(t, 2.0, p)
	assert.Equal(t, int32(2), oracle.calls.Load())
}

func TestCache_TokensWithoutTTLBypassSharedStore(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	store := &memStore{quotes: map[string]domain.PriceQuote{
		"T1": {TokenID: "T1", Price: 1, FetchedAt: clk.Now().Add(-48 * time.Hour)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{"T1": 2}}
	ctx := context.Background()

	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger(), WithStore(store), WithClock(clk.Now))
	p, ok := c.Price(ctx, "T1")
	require.True(t, ok)
	assert.Equal(t, 2.0, p, "a new process checks the oracle once")
	assert.Equal(t, 0, store.saved)

	oracle.prices["T1"] = 3
	require.NoError(t, c.Invalidate(ctx, "T1"))
	p, _ = c.Price(ctx, "T1")
	assert.Equal(t, 3.0, p)
	assert.Equal(t, int32(2), oracle.calls.Load())
}

func TestCache_FailureIsNotCached(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("timeout")}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())
	ctx := context.Background()

	_, ok := c.Price(ctx, "T1")
	assert.False(t, ok)
	_, ok = c.Price(ctx, "T1")
	assert.False(t, ok)

	assert.Equal(t, int32(2), oracle.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCache_NonPositivePriceIsAbsent(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"ZERO": 0, "NEG": -3}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	_, ok := c.Price(context.Background(), "ZERO")
	assert.False(t, ok)
	_, ok = c.Price(context.Background(), "NEG")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	oracle := &fakeOracle{
		prices:  map[string]float64{"T1": 0.5},
		release: make(chan struct{}),
	}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	const k = 32
	var wg sync.WaitGroup
	results := make([]float64, k)
	oks := make([]bool, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = c.Price(context.Background(), "T1")
		}(i)
	}

	// Let every goroutine join the in-flight fetch before it completes.
	time.Sleep(100 * time.Millisecond)
	close(oracle.release)
	wg.Wait()

	assert.Equal(t, int32(1), oracle.calls.Load())
	for i := 0; i < k; i++ {
		assert.True(t, oks[i])
		assert.Equal(t, 0.5, results[i])
	}
}

func TestCache_ConcurrentMissesShareOneFailure(t *testing.T) {
	oracle := &fakeOracle{
		err:     errors.New("bad gateway"),
		release: make(chan struct{}),
	}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	const k = 16
	var wg sync.WaitGroup
	var okCount atomic.Int32
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Price(context.Background(), "T1"); ok {
				okCount.Add(1)
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(oracle.release)
	wg.Wait()

	assert.Equal(t, int32(1), oracle.calls.Load())
	assert.Equal(t, int32(0), okCount.Load())
}

func TestCache_DistinctTokensFetchIndependently(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"A": 1, "B": 2}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	var wg sync.WaitGroup
	for _, id := range []string{"A", "B", "A", "B"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.Price(context.Background(), id)
		}(id)
	}
	wg.Wait()

	q, ok := c.Quote("B")
	require.True(t, ok)
	assert.Equal(t, 2.0, q.Price)
	assert.LessOrEqual(t, oracle.calls.Load(), int32(4))
	assert.GreaterOrEqual(t, oracle.calls.Load(), int32(2))
}

func TestCache_SharedStoreServesBeforeOracle(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	store := &memStore{quotes: map[string]domain.PriceQuote{
		refID: {TokenID: refID, Price: 140, FetchedAt: clk.Now().Add(-time.Minute)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{refID: 150, "T1": 0.05}}
	cfg := Config{ReferenceID: refID, TokenTTL: time.Hour}
	c := NewCache(oracle, cfg, testLogger(), WithStore(store), WithClock(clk.Now))
	ctx := context.Background()

	p, ok := c.Price(ctx, refID)
	require.True(t, ok)
	assert.Equal(t, 140.0, p)
	assert.Equal(t, int32(0), oracle.calls.Load())

	p, ok = c.Price(ctx, "T1")
	require.True(t, ok)
	assert.Equal(t, 0.05, p)
	assert.Equal(t, 1, store.saved, "oracle result written through to the store")
}

func TestCache_StaleStoreQuoteIgnored(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	store := &memStore{quotes: map[string]domain.PriceQuote{
		refID: {TokenID: refID, Price: 100, FetchedAt: clk.Now().Add(-time.Hour)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{refID: 150}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger(), WithStore(store), WithClock(clk.Now))

	p, ok := c.Price(context.Background(), refID)
	require.True(t, ok)
	assert.Equal(t, 150.0, p)
	assert.Equal(t, int32(1), oracle.calls.Load())
}

func TestCache_CancelledCallerDoesNotPoisonFlight(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"T1": 2}}
	c := NewCache(oracle, Config{ReferenceID: refID}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, ok := c.Price(ctx, "T1")
	require.True(t, ok)
	assert.Equal(t, 2.0, p)
}
