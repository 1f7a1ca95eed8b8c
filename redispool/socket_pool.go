package redispool

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/joomcode/errorx"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/joomcode/redisnet/redisconn"
)

// SocketPool keeps bounded set of reusable sockets to single endpoint.
//
// Reused socket is probed before it is handed out: if it has unread data, reached EOF
// or fails otherwise, it is destroyed and acquisition is retried. Returned socket is
// not validated at all, so it is caller's duty not to return socket in the middle of
// request.
//
// New sockets are dialed through circuit breaker, so dead endpoint is not hammered.
// SocketPool implements redisconn.Dialer.
type SocketPool struct {
	addr    string
	ep      redisconn.Endpoint
	opts    Opts
	dialer  redisconn.Dialer
	pool    *puddle.Pool[*socket]
	breaker *gobreaker.CircuitBreaker[net.Conn]
	closed  atomic.Bool
	// slots counts leases and acquisitions in progress, it decides exhaustion
	slots *semaphore.Weighted

	stale     atomic.Int64
	exhausted atomic.Int64
	metrics   *poolMetrics
}

type socket struct {
	net.Conn
	reused bool
}

// Conn is a socket leased from SocketPool.
// Close returns it to the pool, Destroy closes it for good.
type Conn struct {
	net.Conn
	p    *SocketPool
	res  *puddle.Resource[*socket]
	once sync.Once
}

// Stat is a snapshot of SocketPool state.
type Stat struct {
	// Total sockets, including ones being dialed.
	Total int32
	// Idle sockets ready to be leased.
	Idle int32
	// Acquired sockets currently leased.
	Acquired int32
	// Constructing sockets being dialed.
	Constructing int32
	// Max is the pool size limit.
	Max int32
	// Acquires is a number of successful acquisitions.
	Acquires int64
	// Stale is a number of reused sockets discarded by liveness probe.
	Stale int64
	// Exhausted is a number of acquisitions refused because pool were full.
	Exhausted int64
	// Breaker is a state of dial breaker.
	Breaker gobreaker.State
}

// NewSocketPool creates pool of sockets to addr.
// Sockets are dialed lazily.
func NewSocketPool(addr string, opts Opts) (*SocketPool, error) {
	ep, err := redisconn.ParseEndpoint(addr)
	if err != nil {
		return nil, err
	}
	if opts.ConnOpts.TLS != nil {
		ep.TLS = opts.ConnOpts.TLS
	}
	opts.normalize()

	p := &SocketPool{
		addr:    addr,
		ep:      ep,
		opts:    opts,
		dialer:  opts.ConnOpts.Dialer,
		slots:   semaphore.NewWeighted(int64(opts.MaxSockets)),
		metrics: newPoolMetrics(addr),
	}
	if p.dialer == nil {
		p.dialer = redisconn.NewNetDialer(ep, opts.ConnOpts)
	}

	failures := opts.BreakerFailures
	p.breaker = gobreaker.NewCircuitBreaker[net.Conn](gobreaker.Settings{
		Name:        addr,
		MaxRequests: opts.BreakerMaxRequests,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			p.report(LogBreakerChanged{From: from, To: to})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	p.pool, err = puddle.NewPool(&puddle.Config[*socket]{
		Constructor: p.construct,
		Destructor: func(s *socket) {
			s.Close()
		},
		MaxSize: int32(opts.MaxSockets),
	})
	if err != nil {
		return nil, errorx.IllegalArgument.Wrap(err, "could not create pool")
	}
	return p, nil
}

// Addr returns address pool connects to.
func (p *SocketPool) Addr() string {
	return p.addr
}

// Endpoint returns parsed address.
func (p *SocketPool) Endpoint() redisconn.Endpoint {
	return p.ep
}

// Acquire leases socket.
// If MaxSockets sockets are leased or being acquired, it fails immediately with ErrPoolExhausted.
func (p *SocketPool) Acquire(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, p.closedErr()
	}
	if !p.slots.TryAcquire(1) {
		p.exhausted.Add(1)
		p.metrics.exhausted.Inc()
		p.report(LogExhausted{MaxSockets: p.opts.MaxSockets})
		return nil, ErrPoolExhausted.New("all %d sockets are in use", p.opts.MaxSockets).
			WithProperty(EKPool, p).
			WithProperty(EKMaxSockets, p.opts.MaxSockets)
	}
	for {
		res, err := p.pool.Acquire(ctx)
		if err != nil {
			p.slots.Release(1)
			return nil, p.acquireErr(err)
		}
		s := res.Value()
		if s.reused && !p.alive(s) {
			p.stale.Add(1)
			p.metrics.stale.Inc()
			p.report(LogStale{LocalAddr: s.LocalAddr().String()})
			p.discard(res)
			continue
		}
		s.SetDeadline(time.Time{})
		p.metrics.acquires.Inc()
		return &Conn{Conn: s, p: p, res: res}, nil
	}
}

// Dial implements redisconn.Dialer.
func (p *SocketPool) Dial(ctx context.Context) (net.Conn, error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Stat returns pool statistics.
func (p *SocketPool) Stat() Stat {
	st := p.pool.Stat()
	return Stat{
		Total:        st.TotalResources(),
		Idle:         st.IdleResources(),
		Acquired:     st.AcquiredResources(),
		Constructing: st.ConstructingResources(),
		Max:          st.MaxResources(),
		Acquires:     st.AcquireCount(),
		Stale:        p.stale.Load(),
		Exhausted:    p.exhausted.Load(),
		Breaker:      p.breaker.State(),
	}
}

// Close destroys idle sockets and rejects further acquisitions.
// Leased sockets are destroyed when they are returned.
func (p *SocketPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	// puddle waits for leased sockets to come back, so don't block caller on it
	go p.pool.Close()
	p.report(LogClosed{})
}

func (p *SocketPool) String() string {
	return "*redispool.SocketPool{" + p.addr + "}"
}

func (p *SocketPool) report(event LogEvent) {
	p.opts.Logger.Report(p, event)
}

func (p *SocketPool) construct(ctx context.Context) (*socket, error) {
	p.metrics.dials.Inc()
	conn, err := p.breaker.Execute(func() (net.Conn, error) {
		return p.dialer.Dial(ctx)
	})
	if err != nil {
		p.metrics.dialErrors.Inc()
		err = p.dialErr(err)
		p.report(LogDialFailed{Error: err})
		return nil, err
	}
	return &socket{Conn: conn}, nil
}

func (p *SocketPool) dialErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen.Wrap(err, "dialing %s is suspended", p.ep).WithProperty(EKPool, p)
	}
	if _, ok := err.(*errorx.Error); ok {
		return err
	}
	return redisconn.ErrDial.Wrap(err, "could not connect to %s", p.ep).WithProperty(EKPool, p)
}

func (p *SocketPool) acquireErr(err error) error {
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return p.closedErr()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return redisconn.ErrDial.Wrap(err, "acquiring socket to %s", p.ep).WithProperty(EKPool, p)
	}
	return err
}

func (p *SocketPool) closedErr() error {
	return ErrPoolClosed.New("pool to %s is closed", p.ep).WithProperty(EKPool, p)
}

// discard removes socket from the pool at once, so its place is free for next dial.
func (p *SocketPool) discard(res *puddle.Resource[*socket]) {
	s := res.Value()
	res.Hijack()
	s.Close()
}

// alive probes socket: pending data or EOF means socket is out of sync or closed by peer.
func (p *SocketPool) alive(s *socket) bool {
	if err := s.SetReadDeadline(time.Now().Add(p.opts.ProbeTimeout)); err != nil {
		return false
	}
	var b [1]byte
	n, err := s.Read(b[:])
	if n > 0 {
		return false
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// Close returns socket to the pool.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.res.Value().reused = true
		c.res.Release()
		c.p.slots.Release(1)
	})
	return nil
}

// Destroy closes socket and removes it from the pool.
func (c *Conn) Destroy() {
	c.once.Do(func() {
		c.p.discard(c.res)
		c.p.slots.Release(1)
	})
}
