/*
Package redisconn implements connection to single redis server.

Connector is a wrapper around single tcp (unix-socket, tls) connection. Responses carry
no correlation id, so every request is enqueued into FIFO of pending calls and written
to the socket as one indivisible step, and responses are matched to calls by order.

Requests are issued in two ways:

	// blocking write on calling goroutine, response is read by the caller
	res, err := conn.Call(redis.Req("GET", "key"))
	n, err := redisconn.Do(conn, redis.NewCommand[int64](redis.Int, "INCR", "counter"))

	// asynchronous write from pre-allocated buffer segment, response is read by background loop
	f := conn.Send(redis.Req("SET", "key", "value"))
	res, err := f.Wait()

Connector is thread-safe, ie it doesn't need external synchronization.
Connector is responsible for reconnection, but it does no requests retrying in case of
networking problems. When transport breaks, requests written to it fail with ErrIO,
and connector tries to reestablish connection ReconnectAttempts times. If all attempts
fail, connector becomes faulted: all waiting requests fail with ErrReconnectExhausted,
and IsConnected reports false until Reconnect is called.

Commands switching connection into streaming mode (SUBSCRIBE, MONITOR) are forbidden for
Call and Send. They should be issued with Stream, and responses read with ReadNext.
Package redislisten builds subscriptions and monitor on top of it.
*/
package redisconn
