// Package queue implements the Queue & Counter Service contract on top of
// Redis: lists for FIFO job queues, string keys for ledger counters.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contentmod/audio-pipeline/domain/ports"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
)

// client is the narrow slice of *redis.Client this package depends on.
type client interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
}

var _ client = (*redis.Client)(nil)

// Store implements ports.QueueCounter over a Redis connection.
type Store struct {
	rdb client
}

var _ ports.QueueCounter = (*Store)(nil)

// NewStore wraps an existing *redis.Client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Dial connects to a Redis instance at addr (host:port).
func Dial(addr string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// ListPushRight appends payload to the tail of the named queue.
func (s *Store) ListPushRight(ctx context.Context, queue string, payload []byte) error {
	if err := s.rdb.RPush(ctx, queue, payload).Err(); err != nil {
		return pkgerrors.NewQueueError("rpush", fmt.Sprintf("failed to push to queue %q", queue), err)
	}
	return nil
}

// ListBlockingPopLeft waits up to timeout for a payload on any of queues.
func (s *Store) ListBlockingPopLeft(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
	res, err := s.rdb.BLPop(ctx, timeout, queues...).Result()
	if err == redis.Nil {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, pkgerrors.NewQueueError("blpop", "failed to pop from queue", err)
	}
	// BLPOP returns [key, value].
	return res[0], []byte(res[1]), true, nil
}

// QueueLength reports the current number of entries on queue.
func (s *Store) QueueLength(ctx context.Context, queue string) (int64, error) {
	n, err := s.rdb.LLen(ctx, queue).Result()
	if err != nil {
		return 0, pkgerrors.NewQueueError("llen", fmt.Sprintf("failed to measure queue %q", queue), err)
	}
	return n, nil
}

// CounterSet sets key to an initial integer value.
func (s *Store) CounterSet(ctx context.Context, key string, n int64) error {
	if err := s.rdb.Set(ctx, key, n, 0).Err(); err != nil {
		return pkgerrors.NewQueueError("set", fmt.Sprintf("failed to set counter %q", key), err)
	}
	return nil
}

// CounterGet reads the current integer value of key.
func (s *Store) CounterGet(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pkgerrors.NewQueueError("get", fmt.Sprintf("failed to read counter %q", key), err)
	}
	return v, true, nil
}

// CounterIncrement atomically increments key and returns its new value.
func (s *Store) CounterIncrement(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, pkgerrors.NewQueueError("incr", fmt.Sprintf("failed to increment counter %q", key), err)
	}
	return v, nil
}

// StringSet sets a plain string key (used for the ledger's s3_key slot).
func (s *Store) StringSet(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return pkgerrors.NewQueueError("set", fmt.Sprintf("failed to set key %q", key), err)
	}
	return nil
}

// StringGet reads a plain string key.
func (s *Store) StringGet(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.NewQueueError("get", fmt.Sprintf("failed to read key %q", key), err)
	}
	return v, true, nil
}

// Delete removes one or more keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return pkgerrors.NewQueueError("del", "failed to delete keys", err)
	}
	return nil
}

// Keys lists keys matching pattern. Operator tooling only; never called
// from the hot path of a worker.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, pkgerrors.NewQueueError("keys", fmt.Sprintf("failed to list keys matching %q", pattern), err)
	}
	return keys, nil
}
