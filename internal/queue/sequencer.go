// Package queue hands out walk-in queue numbers. Reservation is a single
// indivisible increment-and-fetch per (clinic, date): the read-max-then-write
// pattern is a check-then-act race and is deliberately absent here.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer reserves the next walk-in queue number for a calendar day.
// Numbers start at 1 each day and are never reused within a day, even when
// the appointment holding one is later cancelled.
type Sequencer interface {
	Next(ctx context.Context, date string) (int, error)
}

// RedisSequencer reserves numbers with a Redis INCR per day key.
type RedisSequencer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSequencer creates a sequencer backed by the given client. Day keys
// expire two days after first use; the sequence restarts at 1 the next day.
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	if client == nil {
		panic("queue: redis client required")
	}
	return &RedisSequencer{client: client, ttl: 48 * time.Hour}
}

// Next atomically increments and returns the day's counter.
func (s *RedisSequencer) Next(ctx context.Context, date string) (int, error) {
	key := "walkin:seq:" + date
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: incr %s: %w", key, err)
	}
	if n == 1 {
		// First reservation of the day sets the expiry.
		s.client.Expire(ctx, key, s.ttl)
	}
	return int(n), nil
}

// CounterStore is the subset of the appointment store that reserves queue
// numbers through a database-level atomic counter.
type CounterStore interface {
	ReserveNextQueueNumber(ctx context.Context, date string) (int, error)
}

// StoreSequencer delegates reservation to the store's atomic counter. It is
// the default when Redis is not configured.
type StoreSequencer struct {
	store CounterStore
}

// NewStoreSequencer creates a store-backed sequencer.
func NewStoreSequencer(store CounterStore) *StoreSequencer {
	if store == nil {
		panic("queue: counter store required")
	}
	return &StoreSequencer{store: store}
}

// Next reserves the day's next number through the store.
func (s *StoreSequencer) Next(ctx context.Context, date string) (int, error) {
	return s.store.ReserveNextQueueNumber(ctx, date)
}
