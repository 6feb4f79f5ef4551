package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gustycube/pingscope/internal/metrics"
	"github.com/gustycube/pingscope/internal/types"
)

// RedisQueue is a list of log lines shared between producers that seed it and
// an analysis run that drains it. Leased items move to a processing list until
// acknowledged.
type RedisQueue struct {
	cli      *redis.Client
	queueKey string
	procKey  string
	wait     time.Duration
}

type item struct {
	Line    string `json:"line"`
	TS      int64  `json:"ts"`
	Attempt int    `json:"attempt"`
}

// NewRedis connects to addr, retrying the initial ping with exponential
// backoff for up to maxWait.
func NewRedis(ctx context.Context, addr, key string, wait, maxWait time.Duration) (*RedisQueue, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	if err := backoff.Retry(func() error { return cli.Ping(ctx).Err() }, backoff.WithContext(bo, ctx)); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{cli: cli, queueKey: key, procKey: key + ":processing", wait: wait}, nil
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.cli.Ping(ctx).Err() }

func (q *RedisQueue) Close() error { return q.cli.Close() }

// Seed pushes one log line onto the queue.
func (q *RedisQueue) Seed(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("%w: empty line", ErrMalformedRecord)
	}
	b, err := json.Marshal(item{Line: line, TS: time.Now().UTC().Unix()})
	if err != nil {
		return err
	}
	return q.cli.LPush(ctx, q.queueKey, string(b)).Err()
}

// Lease takes the oldest line. It returns an empty line when nothing arrived
// within the wait time. ack removes the line from the processing list.
func (q *RedisQueue) Lease(ctx context.Context) (string, func() error, error) {
	res, err := q.cli.BRPopLPush(ctx, q.queueKey, q.procKey, q.wait).Result()
	if errors.Is(err, redis.Nil) {
		return "", func() error { return nil }, nil
	}
	if err != nil {
		return "", func() error { return err }, err
	}
	ack := func() error { return q.cli.LRem(ctx, q.procKey, 1, res).Err() }
	it, err := decodeItem(res)
	if err != nil {
		return "", ack, err
	}
	return it.Line, ack, nil
}

func decodeItem(raw string) (item, error) {
	var it item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return item{}, fmt.Errorf("%w: queue item: %v", ErrMalformedRecord, err)
	}
	return it, nil
}

// Collect leases lines until the queue stays empty for one wait period and
// returns the parsed records in queue order. Lines that cannot be parsed are
// acknowledged and skipped.
func (q *RedisQueue) Collect(ctx context.Context, log *zap.SugaredLogger) ([]types.Record, error) {
	var out []types.Record
	for {
		line, ack, err := q.Lease(ctx)
		if err != nil && !errors.Is(err, ErrMalformedRecord) {
			return out, err
		}
		if err == nil && line == "" {
			return out, nil
		}
		if err == nil {
			var rec types.Record
			rec, err = ParseRecord(line)
			if err == nil {
				out = append(out, rec)
			}
		}
		if err != nil {
			metrics.MalformedRecords.Inc()
			log.Warnw("skipping queued record", "err", err)
		}
		if err := ack(); err != nil {
			return out, fmt.Errorf("ack: %w", err)
		}
	}
}
