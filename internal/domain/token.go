package domain

import "context"

// TokenInfo is the static display metadata for a token.
type TokenInfo struct {
	TokenID     string
	DisplayName string
	Decimals    uint8
}

// Name returns the display name, falling back to the raw token identifier.
func (t TokenInfo) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.TokenID
}

// TokenSource supplies registry entries at process start.
type TokenSource interface {
	LoadTokens(ctx context.Context) ([]TokenInfo, error)
	Name() string
}
