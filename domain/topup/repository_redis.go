package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "topup:"
	maxWatchRetries = 5
)

type redisRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRepository stores each top-up as a JSON string whose key TTL tracks
// ExpiresAt. Transitions run inside WATCH/MULTI so a concurrent writer aborts them.
func NewRedisRepository(client *redis.Client) IRepository {
	return &redisRepository{client: client, now: time.Now}
}

func getKey(correlationID string) string {
	return keyPrefix + correlationID
}

func (r *redisRepository) ttl(topUp PendingTopUp) time.Duration {
	ttl := topUp.ExpiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *redisRepository) Get(ctx context.Context, correlationID string) (PendingTopUp, error) {
	data, err := r.client.Get(ctx, getKey(correlationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingTopUp{}, fmt.Errorf("%w: %s", ErrNotFound, correlationID)
	}
	if err != nil {
		return PendingTopUp{}, err
	}

	var topUp PendingTopUp
	if err = json.Unmarshal(data, &topUp); err != nil {
		return PendingTopUp{}, fmt.Errorf("decoding top-up %s: %w", correlationID, err)
	}
	return topUp, nil
}

func (r *redisRepository) Create(ctx context.Context, topUp PendingTopUp) error {
	data, err := json.Marshal(topUp)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, getKey(topUp.CorrelationID), data, r.ttl(topUp)).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, topUp.CorrelationID)
	}
	return nil
}

func (r *redisRepository) CompareAndSwap(ctx context.Context, correlationID string, expected Status, next PendingTopUp) error {
	if err := checkTransition(expected, next); err != nil {
		return err
	}

	key := getKey(correlationID)
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, correlationID)
		}
		if err != nil {
			return err
		}

		var current PendingTopUp
		if err = json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decoding top-up %s: %w", correlationID, err)
		}
		if current.Status != expected {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, correlationID, current.Status, expected)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl(next))
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreBusy, correlationID, err)
}
