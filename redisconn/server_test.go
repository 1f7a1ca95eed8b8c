package redisconn_test

import (
	"context"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joomcode/redisnet/redis"
	. "github.com/joomcode/redisnet/redisconn"
	"github.com/joomcode/redisnet/testbed"
)

// ServerSuite runs against real redis-server.
type ServerSuite struct {
	suite.Suite
	s testbed.Server

	ctx       context.Context
	ctxcancel func()
}

var srvopts = Opts{
	ReceiveTimeout:    200 * time.Millisecond,
	SendTimeout:       200 * time.Millisecond,
	ReconnectAttempts: 10,
	ReconnectWait:     50 * time.Millisecond,
	Logger:            NoopLogger{},
}

func (s *ServerSuite) SetupSuite() {
	if !testbed.Available() {
		s.T().Skip("redis-server not found")
	}
	testbed.InitDir(".")
	s.s.Port = 45679
	s.r().NoError(s.s.Start())
}

func (s *ServerSuite) SetupTest() {
	s.r().NoError(s.s.Start())
	s.ctx, s.ctxcancel = context.WithTimeout(context.Background(), 30*time.Second)
}

func (s *ServerSuite) TearDownTest() {
	s.ctxcancel()
}

func (s *ServerSuite) TearDownSuite() {
	s.s.Stop()
	testbed.RmDir()
}

func (s *ServerSuite) r() *require.Assertions {
	return s.Require()
}

func (s *ServerSuite) TestUTF8RoundTrip() {
	conn, err := Connect(s.ctx, s.s.Addr(), srvopts)
	s.r().NoError(err)
	defer conn.Close()

	_, err = conn.Call(redis.Req("SET", "utf", "é"))
	s.r().NoError(err)
	n, err := Do[int64](conn, redis.NewCommand[int64](redis.Int, "STRLEN", "utf"))
	s.r().NoError(err)
	s.Equal(int64(2), n)
	str, err := Do[string](conn, redis.NewCommand[string](redis.String, "GET", "utf"))
	s.r().NoError(err)
	s.Equal("é", str)
}

func (s *ServerSuite) TestSelectsDB() {
	opts := srvopts
	opts.DB = 1
	conn1, err := Connect(s.ctx, s.s.Addr(), opts)
	s.r().NoError(err)
	defer conn1.Close()
	conn0, err := Connect(s.ctx, s.s.Addr(), srvopts)
	s.r().NoError(err)
	defer conn0.Close()

	_, err = conn1.Call(redis.Req("SET", "db", "one"))
	s.r().NoError(err)
	res, err := conn0.Call(redis.Req("GET", "db"))
	s.r().NoError(err)
	s.Nil(res)
	res, err = conn1.Call(redis.Req("GET", "db"))
	s.r().NoError(err)
	s.Equal([]byte("one"), res)
}

func (s *ServerSuite) TestPipelineOrder() {
	conn, err := Connect(s.ctx, s.s.Addr(), srvopts)
	s.r().NoError(err)
	defer conn.Close()

	_, err = conn.Call(redis.Req("DEL", "order"))
	s.r().NoError(err)
	futures := make([]*Future, 200)
	for i := range futures {
		futures[i] = conn.Send(redis.Req("INCR", "order"))
	}
	for i, f := range futures {
		res, err := f.Wait()
		s.r().NoError(err)
		s.r().Equal(int64(i+1), res)
	}
}

func (s *ServerSuite) TestPausedServerTimesOut() {
	conn, err := Connect(s.ctx, s.s.Addr(), srvopts)
	s.r().NoError(err)
	defer conn.Close()
	s.r().NoError(conn.Ping())

	s.r().NoError(s.s.Pause())
	err = conn.Ping()
	s.r().NoError(s.s.Resume())
	s.r().Error(err)
	s.True(errorx.HasTrait(err, errorx.Timeout()), "%v", err)
	s.True(errorx.HasTrait(err, redis.ErrTraitConnectivity))

	s.r().NoError(conn.WaitConnected(s.ctx))
	s.NoError(conn.Ping())
}

func (s *ServerSuite) TestReconnectsAfterRestart() {
	conn, err := Connect(s.ctx, s.s.Addr(), srvopts)
	s.r().NoError(err)
	defer conn.Close()
	s.r().NoError(conn.Ping())

	s.r().NoError(s.s.Stop())
	s.r().NoError(s.s.Start())
	// first request may fail on broken transport, then connector reconnects
	s.Eventually(func() bool { return conn.Ping() == nil }, 5*time.Second, 20*time.Millisecond)
}

func (s *ServerSuite) TestFaultsWhenServerIsGone() {
	opts := srvopts
	opts.ReconnectAttempts = 2
	conn, err := Connect(s.ctx, s.s.Addr(), opts)
	s.r().NoError(err)
	defer conn.Close()

	s.r().NoError(s.s.Stop())
	s.Eventually(func() bool {
		conn.Ping()
		return conn.State() == StateFaulted
	}, 5*time.Second, 20*time.Millisecond)
	s.False(conn.IsConnected())
	err = conn.Ping()
	s.r().Error(err)
	s.True(errorx.HasTrait(err, redis.ErrTraitConnectivity))

	s.r().NoError(s.s.Start())
	s.r().NoError(conn.Reconnect(s.ctx))
	s.NoError(conn.Ping())
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}
