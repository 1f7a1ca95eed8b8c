/*
Package redisnet - client networking layer for Redis-protocol servers.

Root package is empty. Functionality lives in subpackages:

- redis: RESP2 frame reader, request encoder, typed reply parsers and error kinds,

- redisconn: Connector, single connection with FIFO request pipeline and automatic reconnection,

- redispool: bounded pool of reusable sockets, and Connectors bound to pooled sockets,

- redislisten: publish/subscribe and MONITOR listeners reading unbounded response streams,

- testbed: in-process fake server for tests,

- cmd: redisnet command line tool.

Responses carry no correlation id. Connector writes every request and enqueues its future
under single lock, so responses are matched to requests by order. Request may be performed
synchronously (Call, Do) with the caller reading its own response, or asynchronously (Send)
with request encoded into pre-allocated buffer segment and response read by background loop.

Replies are de-serialized into plain go types:

	redis        | go
	-------------|-------
	plain string | string
	bulk string  | []byte or string, depending on parser
	integer      | int64
	array        | []interface{}
	null         | nil
	error        | *errorx.Error of redis.ErrResult type

Typed parsers (redis.Int, redis.Strings, redis.Hash, ...) convert reply to concrete type
and fail with redis.ErrResponseUnexpected when reply has different shape.

Connection, IO and protocol errors are *errorx.Error too. Errors carrying
redis.ErrTraitNotSent trait are safe to retry: request was not written to the socket.
*/
package redisnet
