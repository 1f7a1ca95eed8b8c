/*
Package redislisten reads unbounded response streams: publish/subscribe and MONITOR feed.

Listener runs loop on dedicated redisconn.Connector: it reads frame, passes it to handler
and checks continuation predicate. Subscription continues while there are active
subscriptions, Monitor continues while connector is connected.

	sub := redislisten.NewSubscription(conn)
	sub.OnMessage(func(ev redis.SubscriptionEvent) {
		fmt.Println(ev.Channel, string(ev.Body))
	})
	sub.Subscribe("news")
	for {
		if err := sub.Listen(); err == nil {
			break
		}
		// transport broke: connector reconnects and subscribes again
		if err := conn.WaitConnected(ctx); err != nil {
			break
		}
	}

Read error after connector noticed disconnection (for example, after Close) stops loop
without error. Other errors are returned from Listen.
*/
package redislisten
