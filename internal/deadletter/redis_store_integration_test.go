//go:build integration

package deadletter

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/syncdata/cdc-relay/internal/domain"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	return opts.Addr
}

func TestRedisStore_CapsList(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(RedisConfig{Address: addr, Key: "test:dlq", MaxLen: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for i := int64(1); i <= 3; i++ {
		rec := NewRecord(SinkSearch, domain.ActionUpsert, testEvent(), &domain.Change{Key: i}, errors.New("down"))
		require.NoError(t, store.Publish(ctx, rec))
	}

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "3", records[0].Key)
	assert.Equal(t, "2", records[1].Key)
}
