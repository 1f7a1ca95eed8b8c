package redispool

import (
	"github.com/joomcode/errorx"

	"github.com/joomcode/redisnet/redis"
)

var (
	// ErrPool - socket pool errors
	ErrPool = redis.Errors.NewSubNamespace("pool")
	// ErrPoolExhausted - every socket is leased and pool reached its maximum size.
	ErrPoolExhausted = ErrPool.NewType("exhausted", redis.ErrTraitNotSent)
	// ErrPoolClosed - pool were closed.
	ErrPoolClosed = ErrPool.NewType("closed", redis.ErrTraitNotSent)
	// ErrBreakerOpen - dialing is suspended after repeated failures.
	ErrBreakerOpen = ErrPool.NewType("breaker_open", redis.ErrTraitNotSent, redis.ErrTraitConnectivity)
)

var (
	// EKPool - key for pool that produced error.
	EKPool = errorx.RegisterProperty("pool")
	// EKMaxSockets - pool size limit.
	EKMaxSockets = errorx.RegisterProperty("max_sockets")
)
