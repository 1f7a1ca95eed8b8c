package redisconn

import (
	"github.com/joomcode/errorx"

	"github.com/joomcode/redisnet/redis"
)

var (
	// ErrConnection - connection related errors
	ErrConnection = redis.Errors.NewSubNamespace("connection")
	// ErrNotConnected - connector were not connected or were explicitly disconnected.
	ErrNotConnected = ErrConnection.NewType("not_connected", redis.ErrTraitNotSent, redis.ErrTraitConnectivity)
	// ErrDial - could not connect.
	ErrDial = ErrConnection.NewType("could_not_connect", redis.ErrTraitNotSent, redis.ErrTraitConnectivity)
	// ErrConnSetup - error on connection setup (AUTH, PING, SELECT).
	ErrConnSetup = ErrConnection.NewType("setup_failed", redis.ErrTraitConnectivity)
	// ErrReconnectExhausted - all reconnection attempts failed, connector is faulted.
	ErrReconnectExhausted = ErrConnection.NewType("reconnect_exhausted", redis.ErrTraitConnectivity)
	// ErrStreamConflict - stream read attempted while calls are pending.
	ErrStreamConflict = ErrConnection.NewType("stream_conflict")
)

var (
	// EKConnection - key for connection that handled request.
	EKConnection = errorx.RegisterProperty("connection")
	// EKDb - db number to select.
	EKDb = errorx.RegisterProperty("db")
	// EKAttempts - number of reconnection attempts made.
	EKAttempts = errorx.RegisterProperty("attempts")
)

func withNewProperty(err *errorx.Error, p errorx.Property, v interface{}) *errorx.Error {
	_, ok := err.Property(p)
	if ok {
		return err
	}
	return err.WithProperty(p, v)
}
