package redislisten

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

// Subscription is a publish/subscribe listener.
//
// Subscribe and PSubscribe could be called before Listen or concurrently with it.
// Listen returns after the frame that brings number of active subscriptions to zero.
// Subscribed channels and patterns are remembered and subscribed again after
// connector reconnects.
//
// Handlers are called synchronously from Listen: slow handler blocks the loop.
type Subscription struct {
	l        *Listener[redis.SubscriptionEvent]
	count    atomic.Int64
	channels *xsync.MapOf[string, struct{}]
	patterns *xsync.MapOf[string, struct{}]

	hmu       sync.Mutex
	onChanged []func(redis.SubscriptionEvent)
	onMessage []func(redis.SubscriptionEvent)
}

// NewSubscription creates subscription on conn.
// conn should be dedicated to subscription: Call and Send fail while it is listening.
func NewSubscription(conn *redisconn.Connector) *Subscription {
	s := &Subscription{
		l:        NewListener[redis.SubscriptionEvent](conn),
		channels: xsync.NewMapOf[string, struct{}](),
		patterns: xsync.NewMapOf[string, struct{}](),
	}
	conn.OnReconnected(s.resubscribe)
	return s
}

// OnChanged registers handler of subscribe/unsubscribe confirmations.
func (s *Subscription) OnChanged(h func(ev redis.SubscriptionEvent)) {
	s.hmu.Lock()
	s.onChanged = append(s.onChanged, h)
	s.hmu.Unlock()
}

// OnMessage registers handler of published messages.
func (s *Subscription) OnMessage(h func(ev redis.SubscriptionEvent)) {
	s.hmu.Lock()
	s.onMessage = append(s.onMessage, h)
	s.hmu.Unlock()
}

// Subscribe subscribes to channels.
func (s *Subscription) Subscribe(channels ...string) error {
	for _, ch := range channels {
		s.channels.Store(ch, struct{}{})
	}
	return s.stream("SUBSCRIBE", channels)
}

// PSubscribe subscribes to patterns.
func (s *Subscription) PSubscribe(patterns ...string) error {
	for _, p := range patterns {
		s.patterns.Store(p, struct{}{})
	}
	return s.stream("PSUBSCRIBE", patterns)
}

// Unsubscribe unsubscribes from channels, or from all channels if none is given.
func (s *Subscription) Unsubscribe(channels ...string) error {
	forget(s.channels, channels)
	return s.stream("UNSUBSCRIBE", channels)
}

// PUnsubscribe unsubscribes from patterns, or from all patterns if none is given.
func (s *Subscription) PUnsubscribe(patterns ...string) error {
	forget(s.patterns, patterns)
	return s.stream("PUNSUBSCRIBE", patterns)
}

// Listen runs read loop until number of active subscriptions drops to zero,
// or connector is closed or disconnected.
func (s *Subscription) Listen() error {
	return s.l.Listen(redis.Subscription, s.dispatch, s.active)
}

// Listening reports if Listen is running.
func (s *Subscription) Listening() bool {
	return s.l.Listening()
}

// Count returns number of active subscriptions as reported by server.
func (s *Subscription) Count() int64 {
	return s.count.Load()
}

// Channels returns sorted list of subscribed channels.
func (s *Subscription) Channels() []string {
	return keys(s.channels)
}

// Patterns returns sorted list of subscribed patterns.
func (s *Subscription) Patterns() []string {
	return keys(s.patterns)
}

func (s *Subscription) active() bool {
	return s.count.Load() > 0
}

func (s *Subscription) dispatch(ev redis.SubscriptionEvent) {
	var handlers []func(redis.SubscriptionEvent)
	switch ev.Kind {
	case redis.KindMessage, redis.KindPMessage:
		s.hmu.Lock()
		handlers = s.onMessage
		s.hmu.Unlock()
	case redis.KindSubscribe, redis.KindUnsubscribe, redis.KindPSubscribe, redis.KindPUnsubscribe:
		s.count.Store(ev.Count)
		s.hmu.Lock()
		handlers = s.onChanged
		s.hmu.Unlock()
	}
	for _, h := range handlers {
		h(ev)
	}
}

func (s *Subscription) stream(verb string, names []string) error {
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}
	return s.l.Conn().Stream(redis.Req(verb, args...))
}

func (s *Subscription) resubscribe(conn *redisconn.Connector) error {
	s.count.Store(0)
	if channels := s.Channels(); len(channels) > 0 {
		if err := s.stream("SUBSCRIBE", channels); err != nil {
			return ErrResubscribe.Wrap(err, "resubscribe to %d channels", len(channels))
		}
	}
	if patterns := s.Patterns(); len(patterns) > 0 {
		if err := s.stream("PSUBSCRIBE", patterns); err != nil {
			return ErrResubscribe.Wrap(err, "resubscribe to %d patterns", len(patterns))
		}
	}
	return nil
}

func forget(m *xsync.MapOf[string, struct{}], names []string) {
	if len(names) == 0 {
		m.Clear()
		return
	}
	for _, n := range names {
		m.Delete(n)
	}
}

func keys(m *xsync.MapOf[string, struct{}]) []string {
	res := make([]string, 0, m.Size())
	m.Range(func(k string, _ struct{}) bool {
		res = append(res, k)
		return true
	})
	sort.Strings(res)
	return res
}
