//go:build integration

package fx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custodia/internal/fx"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/testutil/containers"
)

type RedisSourceSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	source *fx.RedisSource
	oracle *fx.Oracle
}

func TestRedisSourceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSourceSuite))
}

func (s *RedisSourceSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.source = fx.NewRedisSource(s.redis.Client.Client)
	var err error
	s.oracle, err = fx.NewOracle(s.source)
	s.Require().NoError(err)
}

func (s *RedisSourceSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSourceSuite) TestPublishedRate() {
	ctx := context.Background()
	s.Require().NoError(s.source.Publish(ctx, "TWD", "SGD", 4_210_000))

	out, rate, err := s.oracle.Convert(ctx, 3200, "TWD", "SGD")
	s.Require().NoError(err)
	s.Equal(fx.Rate(4_210_000), rate)
	s.Equal(id.Amount(134), out)

	inverse, err := s.oracle.Rate(ctx, "SGD", "TWD")
	s.Require().NoError(err)
	s.Equal(fx.Rate(4_210_000).Inverse(), inverse)
}

func (s *RedisSourceSuite) TestMissingRate() {
	_, err := s.oracle.Rate(context.Background(), "USD", "EUR")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RedisSourceSuite) TestMalformedRate() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "fx:rate:USD:EUR", "not-a-number", 0).Err())
	_, err := s.oracle.Rate(ctx, "USD", "EUR")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
