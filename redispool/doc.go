/*
Package redispool keeps reusable sockets to single redis endpoint.

SocketPool is bounded: when every socket is leased, Acquire fails at once with
ErrPoolExhausted instead of waiting. Socket taken from idle set is probed with short read
deadline; socket with unread data or closed by peer is destroyed and acquisition is
retried. New sockets are dialed through circuit breaker.

Pool binds redisconn.Connector to pooled socket:

	pool, err := redispool.New("127.0.0.1:6379", redispool.Opts{MaxSockets: 8})
	conn, err := pool.Client(ctx)
	res, err := conn.Call(redis.Req("GET", "key"))
	conn.Close() // socket goes back to pool
*/
package redispool
