package redisnet_test

import (
	"context"
	"fmt"
	"log"

	"github.com/joomcode/errorx"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	"github.com/joomcode/redisnet/redislisten"
	"github.com/joomcode/redisnet/redispool"
)

func Example_usage() {
	ctx := context.Background()

	conn, err := redisconn.Connect(ctx, "127.0.0.1:6379", redisconn.Opts{
		DB:     0,
		Logger: redisconn.NoopLogger{}, // shut up logging. Could be your custom implementation.
		// Other parameters (usually, no need to change):
		// ReceiveTimeout, SendTimeout, DialTimeout, ReconnectAttempts, ReconnectWait, AsyncConcurrency
	})
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	// synchronous call: response is read by calling goroutine
	res, err := conn.Call(redis.Req("SET", "key", "ho"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("result: %q\n", res)

	n, err := redisconn.Do[int64](conn, redis.NewCommand[int64](redis.Int, "INCRBY", "counter", 3))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("counter: %d\n", n)

	// asynchronous sends are pipelined, replies come in order
	futures := []*redisconn.Future{
		conn.Send(redis.Req("HSET", "hashkey", "field1", "val1", "field2", "val2")),
		conn.Send(redis.Req("HMGET", "hashkey", "field1", "field3")),
		conn.Send(redis.Req("HMGET", "key", "field1")),
	}
	for i, f := range futures {
		res, err := f.Wait()
		switch {
		case errorx.IsOfType(err, redis.ErrResult):
			fmt.Printf("reply[%d] is error: %v\n", i, errorx.Cast(err).Message())
		case err != nil:
			log.Fatal(err)
		default:
			fmt.Printf("reply[%d]: %T %q\n", i, res, res)
		}
	}
}

func Example_pool() {
	ctx := context.Background()

	pool, err := redispool.New("127.0.0.1:6379", redispool.Opts{MaxSockets: 4})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	conn, err := pool.Client(ctx)
	if errorx.IsOfType(err, redispool.ErrPoolExhausted) {
		// every socket is leased, try later
		return
	} else if err != nil {
		log.Fatal(err)
	}
	defer conn.Close() // socket returns to pool

	if err := conn.Ping(); err != nil {
		log.Fatal(err)
	}
}

func Example_subscribe() {
	ctx := context.Background()

	conn, err := redisconn.Connect(ctx, "127.0.0.1:6379", redisconn.Opts{})
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	sub := redislisten.NewSubscription(conn)
	sub.OnMessage(func(ev redis.SubscriptionEvent) {
		fmt.Printf("%s: %s\n", ev.Channel, ev.Body)
		if string(ev.Body) == "bye" {
			sub.Unsubscribe()
		}
	})
	if err := sub.Subscribe("news"); err != nil {
		log.Fatal(err)
	}
	for {
		err := sub.Listen()
		if err == nil {
			return
		}
		if err := conn.WaitConnected(ctx); err != nil {
			log.Fatal(err)
		}
	}
}
