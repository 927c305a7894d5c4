package fx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func TestConvert(t *testing.T) {
	// 1 TWD = 0.0421 SGD
	rate := Rate(4_210_000)

	out, err := Convert(3200, rate)
	require.NoError(t, err)
	assert.Equal(t, id.Amount(134), out) // 134.72 floored

	_, err = Convert(1, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Convert(id.Amount(^uint64(0)), Rate(2*Scale))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeOutOfRange))
}

func TestSourceFor(t *testing.T) {
	rate := Rate(4_210_000)
	src, err := SourceFor(134, rate)
	require.NoError(t, err)
	assert.Equal(t, id.Amount(3183), src)

	got, err := Convert(src, rate)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, id.Amount(134), "payee receives at least the requested amount")

	exact, err := SourceFor(500, Identity)
	require.NoError(t, err)
	assert.Equal(t, id.Amount(500), exact)
}

func TestImplied(t *testing.T) {
	assert.Equal(t, Rate(4_187_500), Implied(3200, 134))
	assert.Equal(t, Identity, Implied(77, 77))
	assert.Equal(t, Rate(0), Implied(0, 10))
}

func TestInverse(t *testing.T) {
	assert.Equal(t, Identity, Identity.Inverse())
	assert.Equal(t, Rate(2_375_296_912), Rate(4_210_000).Inverse())
	assert.Equal(t, Rate(0), Rate(0).Inverse())
}

func TestOracle(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource()
	src.Set("TWD", "SGD", 4_210_000)
	oracle, err := NewOracle(src)
	require.NoError(t, err)

	t.Run("same currency is identity", func(t *testing.T) {
		r, err := oracle.Rate(ctx, "SGD", "SGD")
		require.NoError(t, err)
		assert.Equal(t, Identity, r)
	})

	t.Run("published direction", func(t *testing.T) {
		out, r, err := oracle.Convert(ctx, 3200, "TWD", "SGD")
		require.NoError(t, err)
		assert.Equal(t, Rate(4_210_000), r)
		assert.Equal(t, id.Amount(134), out)
	})

	t.Run("inverse derived", func(t *testing.T) {
		r, err := oracle.Rate(ctx, "SGD", "TWD")
		require.NoError(t, err)
		assert.Equal(t, Rate(4_210_000).Inverse(), r)
	})

	t.Run("missing pair", func(t *testing.T) {
		_, err := oracle.Rate(ctx, "USD", "JPY")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("nil source rejected", func(t *testing.T) {
		_, err := NewOracle(nil)
		assert.ErrorContains(t, err, "rate source is required")
	})
}
