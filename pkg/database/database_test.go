package database

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestNew_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{Driver: "oracle"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_SQLiteAndPing(t *testing.T) {
	t.Parallel()

	db, err := New(&Config{Driver: "sqlite", FilePath: "file::memory:", MaxOpenConns: 1}, zerolog.Nop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, NewPinger(db).Ping(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, logger.Silent, parseLogLevel("silent"))
	assert.Equal(t, logger.Error, parseLogLevel("ERROR"))
	assert.Equal(t, logger.Info, parseLogLevel("info"))
	assert.Equal(t, logger.Warn, parseLogLevel(""))
}
