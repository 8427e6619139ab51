// Package registry holds the process-wide token metadata table. A Registry is
// built once at start-up from one or more sources and is read-only after.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// Registry maps token identifiers to display metadata. It is safe for
// concurrent reads.
type Registry struct {
	tokens map[string]domain.TokenInfo
}

// New creates a Registry from a fixed list. Later entries for the same token
// replace earlier ones.
func New(tokens []domain.TokenInfo) *Registry {
	m := make(map[string]domain.TokenInfo, len(tokens))
	for _, t := range tokens {
		if t.TokenID == "" {
			continue
		}
		m[t.TokenID] = t
	}
	return &Registry{tokens: m}
}

// Load merges every source in order. When two sources disagree on the
// decimals of a token the later source wins and the conflict is logged.
func Load(ctx context.Context, logger *slog.Logger, sources ...domain.TokenSource) (*Registry, error) {
	m := make(map[string]domain.TokenInfo)
	for _, src := range sources {
		tokens, err := src.LoadTokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("registry: load from %s: %w", src.Name(), err)
		}
		for _, t := range tokens {
			if t.TokenID == "" {
				continue
			}
			if prev, ok := m[t.TokenID]; ok && prev.Decimals != t.Decimals {
				logger.WarnContext(ctx, "registry: decimals conflict",
					slog.String("token", t.TokenID),
					slog.Int("previous", int(prev.Decimals)),
					slog.Int("override", int(t.Decimals)),
					slog.String("source", src.Name()),
				)
			}
			m[t.TokenID] = t
		}
		logger.InfoContext(ctx, "registry: source loaded",
			slog.String("source", src.Name()),
			slog.Int("tokens", len(tokens)),
		)
	}
	return &Registry{tokens: m}, nil
}

// Lookup returns the registered metadata for id.
func (r *Registry) Lookup(id string) (domain.TokenInfo, bool) {
	t, ok := r.tokens[id]
	return t, ok
}

// Info returns the registered metadata for id, or a default entry named
// after the identifier with zero decimals.
func (r *Registry) Info(id string) domain.TokenInfo {
	if t, ok := r.tokens[id]; ok {
		return t
	}
	return domain.TokenInfo{TokenID: id}
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.tokens)
}

// Static is a TokenSource backed by an in-memory list, typically the
// [[tokens]] table of the configuration file.
type Static []domain.TokenInfo

// LoadTokens returns the list unchanged.
func (s Static) LoadTokens(context.Context) ([]domain.TokenInfo, error) {
	return s, nil
}

// Name returns the source identifier.
func (s Static) Name() string {
	return "config"
}
