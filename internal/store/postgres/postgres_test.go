package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: " postgres://x@h/db ", Host: "ignored"},
			want: "postgres://x@h/db",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "localhost", Database: "solwatch", User: "sw", Password: "pw"},
			want: "postgres://sw:pw@localhost:5432/solwatch?sslmode=disable",
		},
		{
			name: "password is escaped",
			cfg:  ClientConfig{Host: "db", Port: 6543, Database: "d", User: "u", Password: "p@ss/word", SSLMode: "require"},
			want: "postgres://u:p%40ss%2Fword@db:6543/d?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_tokens.sql", names[0])
}

func TestTokenStore_Integration(t *testing.T) {
	dsn := os.Getenv("SOLWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SOLWATCH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	c, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.RunMigrations(ctx))
	require.NoError(t, c.RunMigrations(ctx), "migrations are idempotent")

	store := NewTokenStore(c)
	require.NoError(t, store.UpsertTokens(ctx, []domain.TokenInfo{
		{TokenID: "TestMintA", DisplayName: "Alpha", Decimals: 6},
		{TokenID: "TestMintB", DisplayName: "Beta", Decimals: 9},
	}))
	require.NoError(t, store.UpsertTokens(ctx, []domain.TokenInfo{
		{TokenID: "TestMintA", DisplayName: "Alpha v2", Decimals: 6},
	}))

	tokens, err := store.LoadTokens(ctx)
	require.NoError(t, err)

	byID := map[string]domain.TokenInfo{}
	for _, tk := range tokens {
		byID[tk.TokenID] = tk
	}
	assert.Equal(t, "Alpha v2", byID["TestMintA"].DisplayName)
	assert.Equal(t, uint8(9), byID["TestMintB"].Decimals)

	_, err = c.Pool().Exec(ctx, `DELETE FROM tokens WHERE mint LIKE 'TestMint%'`)
	require.NoError(t, err)
}
