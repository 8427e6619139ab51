package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

type failingSource struct{}

func (failingSource) LoadTokens(context.Context) ([]domain.TokenInfo, error) {
	return nil, errors.New("boom")
}

func (failingSource) Name() string { return "failing" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_InfoDefaults(t *testing.T) {
	r := New([]domain.TokenInfo{{TokenID: "T1", DisplayName: "Token One", Decimals: 6}})

	info, ok := r.Lookup("T1")
	require.True(t, ok)
	assert.Equal(t, uint8(6), info.Decimals)

	unknown := r.Info("T9")
	assert.Equal(t, "T9", unknown.TokenID)
	assert.Equal(t, "T9", unknown.Name())
	assert.Equal(t, uint8(0), unknown.Decimals)
}

func TestLoad_LaterSourceWins(t *testing.T) {
	first := Static{{TokenID: "T1", DisplayName: "One", Decimals: 9}}
	second := Static{{TokenID: "T1", DisplayName: "One", Decimals: 6}, {TokenID: "T2", Decimals: 2}}

	r, err := Load(context.Background(), discardLogger(), first, second)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, uint8(6), r.Info("T1").Decimals)
}

func TestLoad_SourceError(t *testing.T) {
	_, err := Load(context.Background(), discardLogger(), Static{}, failingSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
}
