package service

import (
	"context"

	"invoiceflow/internal/logger"

	"github.com/redis/go-redis/v9"
)

// TransitionCounterKey is the Redis hash holding one field per
// "action:role" pair.
const TransitionCounterKey = "invoiceflow:transitions"

// TransitionCounter counts workflow transitions. Best effort: failures are
// logged and never reach the caller.
type TransitionCounter interface {
	Inc(ctx context.Context, action, role string)
}

type redisCounter struct {
	rdb *redis.Client
}

// NewTransitionCounter returns a no-op counter when rdb is nil.
func NewTransitionCounter(rdb *redis.Client) TransitionCounter {
	if rdb == nil {
		return noopCounter{}
	}
	return &redisCounter{rdb: rdb}
}

func (c *redisCounter) Inc(ctx context.Context, action, role string) {
	if err := c.rdb.HIncrBy(context.WithoutCancel(ctx), TransitionCounterKey, action+":"+role, 1).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("action", action).Str("role", role).Msg("transition counter update failed")
	}
}

type noopCounter struct{}

func (noopCounter) Inc(context.Context, string, string) {}
