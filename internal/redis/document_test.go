package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/bailiff/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*redis.DocumentStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return redis.NewDocumentStore(client, zap.NewNop()), mr
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	store, mr := setupTest(t)
	ctx := t.Context()

	data, err := store.Get(ctx, 100, "userlog")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Set(ctx, 100, "userlog", []byte(`{"4":{}}`)))

	data, err = store.Get(ctx, 100, "userlog")
	require.NoError(t, err)
	assert.JSONEq(t, `{"4":{}}`, string(data))

	raw, err := mr.Get("document:100:userlog")
	require.NoError(t, err)
	assert.JSONEq(t, `{"4":{}}`, raw)
}

func TestDocumentGuilds(t *testing.T) {
	t.Parallel()

	store, mr := setupTest(t)
	ctx := t.Context()

	for _, guildID := range []snowflake.ID{300, 100, 200} {
		require.NoError(t, store.Set(ctx, guildID, "userlog", []byte(`{}`)))
	}
	require.NoError(t, store.Set(ctx, 400, "config", []byte(`{}`)))
	require.NoError(t, mr.Set("document:junk:userlog", "{}"))

	guilds, err := store.Guilds(ctx, "userlog")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{100, 200, 300}, guilds)
}
