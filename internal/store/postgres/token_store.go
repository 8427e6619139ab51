package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// TokenStore reads and writes the tokens table. It is a domain.TokenSource
// for the registry.
type TokenStore struct {
	c *Client
}

// NewTokenStore creates a TokenStore on c.
func NewTokenStore(c *Client) *TokenStore {
	return &TokenStore{c: c}
}

// Name identifies the source in logs.
func (s *TokenStore) Name() string {
	return "postgres"
}

// LoadTokens returns every enabled token.
func (s *TokenStore) LoadTokens(ctx context.Context) ([]domain.TokenInfo, error) {
	rows, err := s.c.pool.Query(ctx,
		`SELECT mint, display_name, decimals FROM tokens WHERE enabled ORDER BY mint`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load tokens: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TokenInfo, error) {
		var (
			t        domain.TokenInfo
			decimals int16
		)
		if err := row.Scan(&t.TokenID, &t.DisplayName, &decimals); err != nil {
			return t, err
		}
		t.Decimals = uint8(decimals)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tokens: %w", err)
	}
	return tokens, nil
}

// UpsertTokens inserts or updates tokens in one batch.
func (s *TokenStore) UpsertTokens(ctx context.Context, tokens []domain.TokenInfo) error {
	if len(tokens) == 0 {
		return nil
	}

	const q = `
		INSERT INTO tokens (mint, display_name, decimals, enabled, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (mint) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    decimals     = EXCLUDED.decimals,
		    enabled      = TRUE,
		    updated_at   = NOW()`

	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(q, t.TokenID, t.DisplayName, int16(t.Decimals))
	}
	if err := s.c.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: upsert %d tokens: %w", len(tokens), err)
	}
	return nil
}

var _ domain.TokenSource = (*TokenStore)(nil)
