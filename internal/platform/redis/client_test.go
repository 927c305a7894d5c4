package redis

import (
	"context"
	"errors"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "://nope"})
	assert.Error(t, err)
}

func TestMetricsHook(t *testing.T) {
	ctx := context.Background()
	process := metricsHook{}.ProcessHook(func(_ context.Context, cmd redis.Cmder) error {
		switch cmd.Name() {
		case "get":
			return redis.Nil
		case "set":
			return errors.New("connection reset")
		}
		return nil
	})

	getErrs := promtest.ToFloat64(commandErrors.WithLabelValues("get"))
	setErrs := promtest.ToFloat64(commandErrors.WithLabelValues("set"))

	assert.ErrorIs(t, process(ctx, redis.NewStringCmd(ctx, "get", "fx:rate:USD:EUR")), redis.Nil)
	assert.Error(t, process(ctx, redis.NewStatusCmd(ctx, "set", "k", "v")))

	assert.Equal(t, getErrs, promtest.ToFloat64(commandErrors.WithLabelValues("get")), "misses are not errors")
	assert.Equal(t, setErrs+1, promtest.ToFloat64(commandErrors.WithLabelValues("set")))
	assert.Positive(t, promtest.CollectAndCount(commandDuration))
}
