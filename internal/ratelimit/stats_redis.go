package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Recorder interface {
	Record(ctx context.Context, allowed bool, at time.Time) error
}

// RedisStats counts allowed and denied requests in Redis hashes: a cumulative
// <prefix>:total and per-minute <prefix>:minute:<yyyymmddhhmm> buckets that expire.
type RedisStats struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStats(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStats {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStats{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStats) Record(ctx context.Context, allowed bool, at time.Time) error {
	field := decisionField(allowed)
	bucket := s.MinuteKey(at)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), field, 1)
	pipe.HIncrBy(ctx, bucket, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucket, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "record rate limit stats")
	}
	return nil
}

func (s *RedisStats) TotalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStats) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func decisionField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
