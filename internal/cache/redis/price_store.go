package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// PriceStore implements domain.PriceStore with one hash per token at
// "price:{tokenID}" holding "price" and "ts" (Unix nanoseconds). It lets
// several replicas share oracle results.
type PriceStore struct {
	c *Client
}

// NewPriceStore creates a PriceStore on c.
func NewPriceStore(c *Client) *PriceStore {
	return &PriceStore{c: c}
}

func (s *PriceStore) priceKey(tokenID string) string {
	return s.c.key("price:", tokenID)
}

// SaveQuote writes q with a key expiry of ttl, which must be positive.
func (s *PriceStore) SaveQuote(ctx context.Context, q domain.PriceQuote, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis: save quote %s: non-positive ttl %s", q.TokenID, ttl)
	}
	key := s.priceKey(q.TokenID)
	fields := encodeQuote(q)

	_, err := s.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save quote %s: %w", q.TokenID, err)
	}
	return nil
}

// LoadQuote returns domain.ErrNotFound when no quote is stored.
func (s *PriceStore) LoadQuote(ctx context.Context, tokenID string) (domain.PriceQuote, error) {
	vals, err := s.c.rdb.HGetAll(ctx, s.priceKey(tokenID)).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: load quote %s: %w", tokenID, err)
	}
	return decodeQuote(tokenID, vals)
}

// DeleteQuote removes the stored quote for tokenID. Deleting a missing key is
// not an error.
func (s *PriceStore) DeleteQuote(ctx context.Context, tokenID string) error {
	if err := s.c.rdb.Del(ctx, s.priceKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("redis: delete quote %s: %w", tokenID, err)
	}
	return nil
}

func encodeQuote(q domain.PriceQuote) map[string]interface{} {
	return map[string]interface{}{
		"price": strconv.FormatFloat(q.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(q.FetchedAt.UnixNano(), 10),
	}
}

func decodeQuote(tokenID string, vals map[string]string) (domain.PriceQuote, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price %s: %w", tokenID, err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse ts %s: %w", tokenID, err)
	}

	return domain.PriceQuote{
		TokenID:   tokenID,
		Price:     price,
		FetchedAt: time.Unix(0, tsNano),
	}, nil
}

var _ domain.PriceStore = (*PriceStore)(nil)
