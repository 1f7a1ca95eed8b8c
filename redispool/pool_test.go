package redispool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	. "github.com/joomcode/redisnet/redispool"
)

type PoolSuite struct {
	fakeSuite
}

func (s *PoolSuite) pool(opts Opts) *Pool {
	p, err := New(s.fake.Addr(), opts)
	s.r().NoError(err)
	return p
}

func (s *PoolSuite) TestClientReusesSocket() {
	p := s.pool(s.opts())
	defer p.Close()

	conn, err := p.Client(s.ctx)
	s.r().NoError(err)
	_, err = conn.Call(redis.Req("SET", "k", "v"))
	s.r().NoError(err)
	conn.Close()
	s.Eventually(func() bool { return p.Clients() == 0 }, time.Second, 5*time.Millisecond)
	s.Equal(int32(1), p.Stat().Idle)

	conn, err = p.Client(s.ctx)
	s.r().NoError(err)
	defer conn.Close()
	res, err := redisconn.Do(conn, redis.NewCommand[string](redis.String, "GET", "k"))
	s.r().NoError(err)
	s.Equal("v", res)
	s.Equal(int32(1), p.Stat().Total)
	s.Equal(1, s.fake.Clients())
	s.Equal(2, s.fake.Count("PING"))
}

func (s *PoolSuite) TestClientExhausted() {
	opts := s.opts()
	opts.MaxSockets = 1
	p := s.pool(opts)
	defer p.Close()

	conn, err := p.Client(s.ctx)
	s.r().NoError(err)
	_, err = p.Client(s.ctx)
	s.checkErr(err, ErrPoolExhausted)

	conn.Close()
	conn, err = p.Client(s.ctx)
	s.r().NoError(err)
	conn.Close()
}

func (s *PoolSuite) TestStreamedSocketIsDestroyed() {
	p := s.pool(s.opts())
	defer p.Close()

	conn, err := p.Client(s.ctx)
	s.r().NoError(err)
	s.r().NoError(conn.Stream(redis.Req("SUBSCRIBE", "ch")))
	ev, err := redisconn.ReadNext[redis.SubscriptionEvent](conn, redis.Subscription)
	s.r().NoError(err)
	s.Equal(redis.KindSubscribe, ev.Kind)

	conn.Close()
	s.Eventually(func() bool { return p.Stat().Total == 0 }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return s.fake.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *PoolSuite) TestClientReconnectsThroughPool() {
	p := s.pool(s.opts())
	defer p.Close()

	conn, err := p.Client(s.ctx)
	s.r().NoError(err)
	defer conn.Close()
	s.r().NoError(conn.Ping())

	s.fake.DropConnections()
	s.Error(conn.Ping())
	s.r().NoError(conn.WaitConnected(s.ctx))
	s.NoError(conn.Ping())
	s.Eventually(func() bool { return p.Stat().Total == 1 }, time.Second, 5*time.Millisecond)
}

func (s *PoolSuite) TestCloseClosesClients() {
	p := s.pool(s.opts())

	conn, err := p.Client(s.ctx)
	s.r().NoError(err)
	s.Equal(1, p.Clients())

	p.Close()
	s.Equal(redisconn.StateClosed, conn.State())
	_, err = p.Client(s.ctx)
	s.checkErr(err, ErrPoolClosed)
	s.Eventually(func() bool { return s.fake.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPool(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}
