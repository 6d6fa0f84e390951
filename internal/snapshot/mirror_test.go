package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/logger"
	"github.com/wonny/debtview/pkg/redis"
)

func TestRedisMirror(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := redis.NewFromClient(db)
	cache := redis.NewCache(client, "debtview")
	m := NewRedisMirror(client, cache, time.Minute, logger.NewNop())
	require.NotNil(t, m)

	snap := generation(7, 5)
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	notice, err := json.Marshal(Notice{
		ID:         snap.ID.String(),
		CapturedAt: snap.CapturedAt,
		Quotes:     5,
		Key:        "debtview:cache:snapshot:latest",
	})
	require.NoError(t, err)

	mock.ExpectSet("debtview:cache:snapshot:latest", data, time.Minute).SetVal("OK")
	mock.ExpectPublish(redis.SnapshotChannel, notice).SetVal(1)

	require.NoError(t, m.Mirror(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisMirrorDisabled(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, NewRedisMirror(client, redis.NewCache(client, "debtview"), 0, logger.NewNop()))
}

func TestLoadMirrored(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromClient(db), "debtview")

	mock.ExpectGet("debtview:cache:snapshot:latest").RedisNil()
	_, err := LoadMirrored(context.Background(), cache)
	assert.ErrorIs(t, err, ErrNotReady)

	snap := generation(3, 2)
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	mock.ExpectGet("debtview:cache:snapshot:latest").SetVal(string(data))

	got, err := LoadMirrored(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Len(t, got.Quotes, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
