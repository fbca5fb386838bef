//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func TestRedisStats_Record(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	s := NewRedisStats(rdb, "test:ratelimit", time.Hour)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, true, at))
	require.NoError(t, s.Record(ctx, true, at))
	require.NoError(t, s.Record(ctx, false, at))

	total, err := rdb.HGetAll(ctx, s.TotalKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"allowed": "2", "denied": "1"}, total)

	ttl, err := rdb.TTL(ctx, s.MinuteKey(at)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ttl, err = rdb.TTL(ctx, s.TotalKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}
