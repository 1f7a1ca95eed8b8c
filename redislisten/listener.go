package redislisten

import (
	"sync/atomic"

	"github.com/joomcode/errorx"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

var (
	// ErrListen - listener errors
	ErrListen = redis.Errors.NewSubNamespace("listen")
	// ErrAlreadyListening - Listen were called while loop is running.
	ErrAlreadyListening = ErrListen.NewType("already_listening")
	// ErrResubscribe - subscriptions were not restored after reconnection.
	ErrResubscribe = ErrListen.NewType("resubscribe_failed", redis.ErrTraitConnectivity)
)

// Listener reads unbounded stream of frames from connector.
type Listener[T any] struct {
	conn      *redisconn.Connector
	listening atomic.Bool
}

// NewListener returns listener on conn.
func NewListener[T any](conn *redisconn.Connector) *Listener[T] {
	return &Listener[T]{conn: conn}
}

// Conn returns underlying connector.
func (l *Listener[T]) Conn() *redisconn.Connector {
	return l.conn
}

// Listening reports if read loop is running.
func (l *Listener[T]) Listening() bool {
	return l.listening.Load()
}

// Listen reads frames with p and passes each one to onValue, until cont reports false.
// cont is checked after each frame, so at least one frame is read.
//
// Connectivity error is not an error if connector already knows it is disconnected:
// loop just stops. Otherwise error is returned, and connector's transport is aborted
// if error left stream out of sync.
func (l *Listener[T]) Listen(p redis.Parser[T], onValue func(T), cont func() bool) error {
	if !l.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening.New("listener on %s", l.conn.Addr())
	}
	defer l.listening.Store(false)
	for {
		v, err := redisconn.ReadNext(l.conn, p)
		if err != nil {
			if errorx.HasTrait(err, redis.ErrTraitConnectivity) && !l.conn.IsConnected() {
				return nil
			}
			if redis.StreamBroken(err) {
				l.conn.Abort(err)
			}
			return err
		}
		onValue(v)
		if !cont() {
			return nil
		}
	}
}
