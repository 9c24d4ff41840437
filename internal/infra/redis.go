package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis parses redisURL, tags the connection with the service name and
// pings once. Queues, the dead-letter lists and the transition counters all
// share the returned client.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = "invoiceflow"
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// NewOptionalRedis is NewRedis for components that can run without Redis.
// An empty URL or a failed connection yields nil and a warning.
func NewOptionalRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Warn().Msg("redis: REDIS_URL empty, queues and counters disabled")
		return nil
	}
	rdb, err := NewRedis(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: unavailable, queues and counters disabled")
		return nil
	}
	return rdb
}
