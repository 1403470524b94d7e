package store

import (
	"context"
	"testing"

	"github.com/JonMunkholm/nutriload/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", URL: "file.db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpen_BadPostgresURL(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", URL: "postgres://%zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database URL")
}

func TestMemory(t *testing.T) {
	b := Memory()
	defer b.Close()

	assert.Equal(t, "memory", b.Driver)
	assert.NoError(t, b.Ping(context.Background()))
	assert.Empty(t, b.Resetters)

	n, err := b.Foods.CountAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
