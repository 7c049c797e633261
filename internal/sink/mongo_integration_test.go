//go:build integration

package sink_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/sink"
)

func TestMongoDocumentSink_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcmongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := sink.MongoConfig{URI: uri, Database: "shop", Collection: "orders"}
	client, err := sink.ConnectMongo(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	require.NoError(t, sink.NewMongoPinger(client).Ping(ctx))

	coll, err := sink.MongoCollection(client, cfg)
	require.NoError(t, err)
	assert.Equal(t, "orders", coll.Name())
	assert.Equal(t, "shop", coll.Database().Name())
	s := sink.NewMongoDocumentSink(coll, 0)

	first := domain.NewSnapshot(domain.Row{"order_id": int64(42), "status": "pending", "note": "gift"}, int64(42))
	second := domain.NewSnapshot(domain.Row{"order_id": int64(42), "status": "shipped"}, int64(42))

	require.NoError(t, s.Upsert(ctx, first))
	require.NoError(t, s.Upsert(ctx, second))
	require.NoError(t, s.Upsert(ctx, second))

	var got bson.M
	require.NoError(t, coll.FindOne(ctx, bson.D{{Key: "_id", Value: int64(42)}}).Decode(&got))
	assert.Equal(t, "shipped", got["status"])
	assert.NotContains(t, got, "note", "upsert replaces the whole document")

	n, err := coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Delete(ctx, int64(42)))
	require.NoError(t, s.Delete(ctx, int64(42)))

	n, err = coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
