package fx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	id "custodia/pkg/domain"
)

const redisKeyPrefix = "fx:rate:"

// RedisSource reads the rate snapshot an external price feed keeps in Redis
// under fx:rate:<FROM>:<TO>, as a decimal integer scaled by Scale.
type RedisSource struct {
	client *redis.Client
}

func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

func rateKey(from, to id.Currency) string {
	return redisKeyPrefix + string(from) + ":" + string(to)
}

func (s *RedisSource) Lookup(ctx context.Context, from, to id.Currency) (Rate, bool, error) {
	raw, err := s.client.Get(ctx, rateKey(from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get rate %s/%s: %w", from, to, err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse rate %s/%s: %w", from, to, err)
	}
	return Rate(v), true, nil
}

// Publish writes a rate. The price feed owns this key space; Publish exists
// for seeding and tests.
func (s *RedisSource) Publish(ctx context.Context, from, to id.Currency, rate Rate) error {
	if err := s.client.Set(ctx, rateKey(from, to), strconv.FormatUint(uint64(rate), 10), 0).Err(); err != nil {
		return fmt.Errorf("set rate %s/%s: %w", from, to, err)
	}
	return nil
}
