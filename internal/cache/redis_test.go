package cache

import (
	"context"
	"testing"

	"circle/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		rdb, err := Connect(ctx, addr)
		require.NoError(t, err, addr)
		assert.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
		_ = rdb.Close()
	}

	_, err := Connect(ctx, "")
	assert.Error(t, err)
	_, err = Connect(ctx, "redis://localhost:6379/notanumber")
	assert.ErrorContains(t, err, "invalid REDIS_URL")

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(ctx, addr)
	assert.ErrorContains(t, err, "ping redis")
}

func TestNewClient_CountsFailuresNotMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	getErrs := testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("get"))
	incrErrs := testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("incr"))

	assert.Error(t, rdb.Get(ctx, "missing").Err(), "miss")
	assert.Equal(t, getErrs, testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("get")))

	require.NoError(t, rdb.Set(ctx, "word", "abc", 0).Err())
	assert.Error(t, rdb.Incr(ctx, "word").Err())
	assert.Equal(t, incrErrs+1, testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("incr")))
}
