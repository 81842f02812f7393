package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedis(addr string, poolSize int) (*redis.Client, error) {
	if poolSize <= 0 {
		poolSize = 20
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           0,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
