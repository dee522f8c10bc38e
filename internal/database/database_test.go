package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingWithRetry(t *testing.T) {
	errDown := errors.New("connection refused")

	calls := 0
	err := pingWithRetry(context.Background(), zerolog.Nop(), "test", 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errDown
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = pingWithRetry(context.Background(), zerolog.Nop(), "test", 2, time.Millisecond, func(context.Context) error {
		calls++
		return errDown
	})
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pingWithRetry(ctx, zerolog.Nop(), "test", 5, time.Hour, func(context.Context) error { return errDown })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRedisClientAndDeleteIfSession(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := NewRedisClient(ctx, &config.Config{RedisURL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.HSet(ctx, "active", SessionField, "new", "assessment_id", "a1").Err())

	n, err := DeleteIfSession.Run(ctx, rdb, []string{"active"}, "old").Int()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "stale session must not delete")
	assert.True(t, mr.Exists("active"))

	n, err = DeleteIfSession.Run(ctx, rdb, []string{"active"}, "new").Int()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("active"))

	n, err = DeleteIfSession.Run(ctx, rdb, []string{"missing"}, "new").Int()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "://nope"}, zerolog.Nop())
	assert.Error(t, err)
}
