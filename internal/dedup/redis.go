package dedup

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "pingscope:seen:"

// Redis shares seen keys between runs and processes. Keys expire after ttl.
type Redis struct {
	cli        *redis.Client
	ttl        time.Duration
	log        *zap.SugaredLogger
	errorCount atomic.Int64
}

func NewRedis(ctx context.Context, addr string, ttl time.Duration, log *zap.SugaredLogger) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Redis{cli: cli, ttl: ttl, log: log}, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.cli.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.cli.Close() }

// Seen reports false when redis is unreachable so events are re-sent rather
// than lost.
func (r *Redis) Seen(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := r.cli.SetNX(ctx, keyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		if n := r.errorCount.Add(1); n%100 == 1 {
			r.log.Warnw("redis dedup error", "count", n, "err", err)
		}
		return false
	}
	return !ok
}
