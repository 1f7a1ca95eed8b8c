package redislisten_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	. "github.com/joomcode/redisnet/redislisten"
	"github.com/joomcode/redisnet/testbed"
)

type events struct {
	mu  sync.Mutex
	evs []redis.SubscriptionEvent
}

func (e *events) add(ev redis.SubscriptionEvent) {
	e.mu.Lock()
	e.evs = append(e.evs, ev)
	e.mu.Unlock()
}

func (e *events) get() []redis.SubscriptionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]redis.SubscriptionEvent(nil), e.evs...)
}

type Suite struct {
	suite.Suite
	fake *testbed.Fake

	ctx       context.Context
	ctxcancel func()
}

func (s *Suite) SetupTest() {
	var err error
	s.fake, err = testbed.NewFake()
	s.r().NoError(err)
	s.ctx, s.ctxcancel = context.WithTimeout(context.Background(), 30*time.Second)
}

func (s *Suite) TearDownTest() {
	s.ctxcancel()
	s.fake.Stop()
}

func (s *Suite) r() *require.Assertions {
	return s.Require()
}

func (s *Suite) connect() *redisconn.Connector {
	conn, err := redisconn.Connect(s.ctx, s.fake.Addr(), redisconn.Opts{
		ReconnectWait: 20 * time.Millisecond,
		Logger:        redisconn.NoopLogger{},
	})
	s.r().NoError(err)
	return conn
}

func (s *Suite) listen(sub *Subscription) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- sub.Listen()
	}()
	return done
}

func (s *Suite) wait(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		s.FailNow("listener did not stop")
		return nil
	}
}

func (s *Suite) TestListenerStopsOnPredicate() {
	conn := s.connect()
	defer conn.Close()

	s.r().NoError(conn.Stream(redis.Req("SUBSCRIBE", "a", "b", "c")))
	l := NewListener[redis.SubscriptionEvent](conn)
	var evs []redis.SubscriptionEvent
	err := l.Listen(redis.Subscription, func(ev redis.SubscriptionEvent) {
		s.True(l.Listening())
		evs = append(evs, ev)
	}, func() bool {
		return len(evs) < 2
	})
	s.r().NoError(err)
	s.False(l.Listening())
	s.r().Len(evs, 2)
	s.Equal("a", evs[0].Channel)
	s.Equal("b", evs[1].Channel)
}

func (s *Suite) TestSubscription() {
	conn := s.connect()
	defer conn.Close()

	sub := NewSubscription(conn)
	var changed, messages events
	sub.OnChanged(changed.add)
	sub.OnMessage(messages.add)

	s.r().NoError(sub.Subscribe("a", "b"))
	s.r().NoError(sub.PSubscribe("c*"))
	done := s.listen(sub)
	s.Eventually(func() bool { return sub.Count() == 3 }, time.Second, 5*time.Millisecond)
	s.True(sub.Listening())
	s.Equal([]string{"a", "b"}, sub.Channels())
	s.Equal([]string{"c*"}, sub.Patterns())

	s.Equal(1, s.fake.Publish("a", "hello"))
	s.Equal(1, s.fake.Publish("cx", "world"))
	s.Eventually(func() bool { return len(messages.get()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := messages.get()
	s.Equal(redis.SubscriptionEvent{Kind: redis.KindMessage, Channel: "a", Body: []byte("hello")}, msgs[0])
	s.Equal(redis.SubscriptionEvent{Kind: redis.KindPMessage, Pattern: "c*", Channel: "cx", Body: []byte("world")}, msgs[1])

	s.r().NoError(sub.Unsubscribe())
	s.Eventually(func() bool { return sub.Count() == 1 }, time.Second, 5*time.Millisecond)
	s.Empty(sub.Channels())

	s.r().NoError(sub.PUnsubscribe("c*"))
	s.NoError(s.wait(done))
	s.False(sub.Listening())
	s.Equal(int64(0), sub.Count())
	s.Len(changed.get(), 6)

	// connection left subscribed mode and serves regular requests again
	s.NoError(conn.Ping())
}

func (s *Suite) TestAlreadyListening() {
	conn := s.connect()
	defer conn.Close()

	sub := NewSubscription(conn)
	s.r().NoError(sub.Subscribe("a"))
	done := s.listen(sub)
	s.Eventually(func() bool { return sub.Count() == 1 }, time.Second, 5*time.Millisecond)

	err := sub.Listen()
	s.True(errorx.IsOfType(err, ErrAlreadyListening))

	s.r().NoError(sub.Unsubscribe("a"))
	s.NoError(s.wait(done))
}

func (s *Suite) TestCloseStopsListenSilently() {
	conn := s.connect()
	sub := NewSubscription(conn)
	s.r().NoError(sub.Subscribe("a"))
	done := s.listen(sub)
	s.Eventually(func() bool { return sub.Count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	s.NoError(s.wait(done))
}

func (s *Suite) TestResubscribeAfterReconnect() {
	conn := s.connect()
	defer conn.Close()

	sub := NewSubscription(conn)
	var messages events
	sub.OnMessage(messages.add)
	s.r().NoError(sub.Subscribe("a"))
	s.r().NoError(sub.PSubscribe("p*"))
	done := s.listen(sub)
	s.Eventually(func() bool { return sub.Count() == 2 }, time.Second, 5*time.Millisecond)

	s.fake.DropConnections()
	err := s.wait(done)
	s.r().Error(err)
	s.True(errorx.HasTrait(err, redis.ErrTraitConnectivity))

	s.r().NoError(conn.WaitConnected(s.ctx))
	done = s.listen(sub)
	s.Eventually(func() bool { return sub.Count() == 2 }, time.Second, 5*time.Millisecond)
	s.Equal(1, s.fake.Publish("a", "again"))
	s.Eventually(func() bool { return len(messages.get()) == 1 }, time.Second, 5*time.Millisecond)

	s.r().NoError(sub.Unsubscribe())
	s.r().NoError(sub.PUnsubscribe())
	s.NoError(s.wait(done))
}

func (s *Suite) TestMonitor() {
	mconn := s.connect()
	conn := s.connect()
	defer conn.Close()

	m := NewMonitor(mconn)
	var mu sync.Mutex
	var entries []interface{}
	m.OnEntry(func(entry interface{}) {
		mu.Lock()
		entries = append(entries, entry)
		mu.Unlock()
	})
	type result struct {
		status string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := m.Start()
		done <- result{status, err}
	}()

	s.Eventually(func() bool {
		if _, err := conn.Call(redis.Req("SET", "k", "v v")); err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)
	s.True(m.Listening())

	mu.Lock()
	line, ok := entries[0].(string)
	mu.Unlock()
	s.r().True(ok)
	e, err := ParseEntry(line)
	s.r().NoError(err)
	s.Equal([]string{"SET", "k", "v v"}, e.Args)
	s.Equal(0, e.DB)
	s.Equal(conn.LocalAddr(), e.Client)

	mconn.Close()
	select {
	case res := <-done:
		s.NoError(res.err)
		s.Equal("OK", res.status)
	case <-time.After(5 * time.Second):
		s.FailNow("monitor did not stop")
	}
	s.False(m.Listening())
}

func TestListener(t *testing.T) {
	suite.Run(t, new(Suite))
}

func TestParseEntry(t *testing.T) {
	e, err := ParseEntry(`1700000000.000042 [3 127.0.0.1:5000] "SET" "key" "a \"quoted\" \x01"`)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 42000), e.Time)
	assert.Equal(t, 3, e.DB)
	assert.Equal(t, "127.0.0.1:5000", e.Client)
	assert.Equal(t, []string{"SET", "key", "a \"quoted\" \x01"}, e.Args)

	e, err = ParseEntry(`1700000000.5 [0 unix:/tmp/redis.sock] "PING"`)
	require.NoError(t, err)
	assert.Equal(t, "unix:/tmp/redis.sock", e.Client)
	assert.Equal(t, []string{"PING"}, e.Args)

	for _, bad := range []string{"", "garbage", "x.1 [0 a] \"PING\"", "1.1 0 a", "1.1 [zero a] \"PING\"", "1.1 [0 a] PING"} {
		_, err = ParseEntry(bad)
		assert.True(t, errorx.IsOfType(err, redis.ErrResponseUnexpected), bad)
	}
}
