package redispool_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	. "github.com/joomcode/redisnet/redispool"
	"github.com/joomcode/redisnet/testbed"
)

const ping = "*1\r\n$4\r\nPING\r\n"

type fakeSuite struct {
	suite.Suite
	fake *testbed.Fake

	ctx       context.Context
	ctxcancel func()
}

type SocketSuite struct {
	fakeSuite
}

func (s *fakeSuite) SetupTest() {
	var err error
	s.fake, err = testbed.NewFake()
	s.r().NoError(err)
	s.ctx, s.ctxcancel = context.WithTimeout(context.Background(), 30*time.Second)
}

func (s *fakeSuite) TearDownTest() {
	s.ctxcancel()
	s.fake.Stop()
}

func (s *fakeSuite) r() *require.Assertions {
	return s.Require()
}

func (s *fakeSuite) opts() Opts {
	return Opts{
		MaxSockets: 4,
		Logger:     NoopLogger{},
		ConnOpts: redisconn.Opts{
			ReconnectWait: 20 * time.Millisecond,
			Logger:        redisconn.NoopLogger{},
		},
	}
}

func (s *fakeSuite) sockets(opts Opts) *SocketPool {
	p, err := NewSocketPool(s.fake.Addr(), opts)
	s.r().NoError(err)
	return p
}

func (s *fakeSuite) checkErr(err error, typ *errorx.Type) {
	s.r().Error(err)
	s.r().True(errorx.IsOfType(err, typ), "expected %s, got %v", typ, err)
}

func (s *fakeSuite) pingRaw(c net.Conn) {
	_, err := c.Write([]byte(ping))
	s.r().NoError(err)
	buf := make([]byte, len("+PONG\r\n"))
	_, err = io.ReadFull(c, buf)
	s.r().NoError(err)
	s.Equal("+PONG\r\n", string(buf))
}

func (s *SocketSuite) TestReuse() {
	p := s.sockets(s.opts())
	defer p.Close()

	c, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	s.pingRaw(c)
	local := c.LocalAddr().String()
	s.NoError(c.Close())
	s.NoError(c.Close())

	st := p.Stat()
	s.Equal(int32(1), st.Total)
	s.Equal(int32(1), st.Idle)

	c, err = p.Acquire(s.ctx)
	s.r().NoError(err)
	s.Equal(local, c.LocalAddr().String())
	s.pingRaw(c)
	c.Close()

	st = p.Stat()
	s.Equal(int64(2), st.Acquires)
	s.Equal(int64(0), st.Stale)
	s.Equal(1, s.fake.Clients())
}

func (s *SocketSuite) TestExhausted() {
	opts := s.opts()
	opts.MaxSockets = 2
	p := s.sockets(opts)
	defer p.Close()

	c1, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	c2, err := p.Acquire(s.ctx)
	s.r().NoError(err)

	start := time.Now()
	_, err = p.Acquire(s.ctx)
	s.checkErr(err, ErrPoolExhausted)
	s.True(errorx.HasTrait(err, redis.ErrTraitNotSent))
	s.Less(time.Since(start), 100*time.Millisecond)
	s.Equal(int64(1), p.Stat().Exhausted)

	c1.Close()
	c3, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	c2.Close()
	c3.Close()
}

func (s *SocketSuite) TestUnreadDataIsStale() {
	p := s.sockets(s.opts())
	defer p.Close()

	c, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	local := c.LocalAddr().String()
	_, err = c.Write([]byte(ping))
	s.r().NoError(err)
	// let reply arrive, so it sits unread in socket
	time.Sleep(20 * time.Millisecond)
	c.Close()

	c, err = p.Acquire(s.ctx)
	s.r().NoError(err)
	defer c.Close()
	s.NotEqual(local, c.LocalAddr().String())
	s.pingRaw(c)
	s.Equal(int64(1), p.Stat().Stale)
}

func (s *SocketSuite) TestClosedByPeerIsStale() {
	p := s.sockets(s.opts())
	defer p.Close()

	c, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	c.Close()

	s.fake.DropConnections()
	s.Eventually(func() bool { return s.fake.Clients() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	c, err = p.Acquire(s.ctx)
	s.r().NoError(err)
	defer c.Close()
	s.pingRaw(c)
	s.Equal(int64(1), p.Stat().Stale)
}

func (s *SocketSuite) TestExhaustedUnderContention() {
	p := s.sockets(s.opts())
	defer p.Close()

	const callers = 32
	type result struct {
		c   *Conn
		err error
	}
	start := make(chan struct{})
	results := make(chan result, callers)
	for i := 0; i < callers; i++ {
		go func() {
			<-start
			c, err := p.Acquire(s.ctx)
			results <- result{c, err}
		}()
	}
	close(start)

	var leased []*Conn
	for i := 0; i < callers; i++ {
		select {
		case res := <-results:
			if res.err != nil {
				s.checkErr(res.err, ErrPoolExhausted)
				continue
			}
			leased = append(leased, res.c)
		case <-time.After(2 * time.Second):
			s.FailNow("acquire blocked on full pool")
		}
	}
	s.Len(leased, 4)
	s.Equal(int64(callers-4), p.Stat().Exhausted)
	for _, c := range leased {
		c.Close()
	}
	c, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	c.Close()
}

func (s *SocketSuite) TestDestroy() {
	p := s.sockets(s.opts())
	defer p.Close()

	c, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	c.Destroy()
	c.Close()
	s.Eventually(func() bool { return p.Stat().Total == 0 }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return s.fake.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *SocketSuite) TestBreaker() {
	opts := s.opts()
	opts.BreakerFailures = 2
	opts.BreakerTimeout = time.Minute
	p := s.sockets(opts)
	defer p.Close()
	s.fake.Stop()

	for i := 0; i < 2; i++ {
		_, err := p.Acquire(s.ctx)
		s.checkErr(err, redisconn.ErrDial)
	}
	_, err := p.Acquire(s.ctx)
	s.checkErr(err, ErrBreakerOpen)
	s.True(errorx.HasTrait(err, redis.ErrTraitConnectivity))
	s.Equal(gobreaker.StateOpen, p.Stat().Breaker)
}

func (s *SocketSuite) TestClose() {
	p := s.sockets(s.opts())

	idle, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	leased, err := p.Acquire(s.ctx)
	s.r().NoError(err)
	idle.Close()

	p.Close()
	p.Close()
	_, err = p.Acquire(s.ctx)
	s.checkErr(err, ErrPoolClosed)

	s.Eventually(func() bool { return s.fake.Clients() == 1 }, time.Second, 5*time.Millisecond)
	leased.Close()
	s.Eventually(func() bool { return s.fake.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *SocketSuite) TestMalformedAddress() {
	_, err := NewSocketPool("", s.opts())
	s.checkErr(err, redis.ErrNoAddressProvided)
}

func TestSocketPool(t *testing.T) {
	suite.Run(t, new(SocketSuite))
}
