package db

import (
	"context"
	"testing"

	"gatehouse/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNotConfigured(t *testing.T) {
	cfg := &config.Config{SecretKey: "s", StoreDriver: config.DriverSupabase, SupabaseURL: "https://x.supabase.co"}

	s, err := Open(context.Background(), cfg)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "SUPABASE_KEY")
	assert.NotContains(t, err.Error(), "https://x.supabase.co")
}

func TestOpenSelectsDriver(t *testing.T) {
	cfg := &config.Config{SecretKey: "s", StoreDriver: config.DriverSQLite, SQLitePath: ":memory:"}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)

	cfg = &config.Config{SecretKey: "s", StoreDriver: config.DriverSupabase, SupabaseURL: "https://x.supabase.co", SupabaseKey: "k"}
	s2, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s2.Close()
	assert.IsType(t, &SupabaseStore{}, s2)
}
