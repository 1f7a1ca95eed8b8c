package redisconn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joomcode/errorx"
	"golang.org/x/text/encoding"

	"github.com/joomcode/redisnet/internal"
	"github.com/joomcode/redisnet/internal/bufpool"
	"github.com/joomcode/redisnet/redis"
)

// State of connector.
type State uint32

const (
	// StateDisconnected - connector is not connected and does not try to connect.
	StateDisconnected State = iota
	// StateConnecting - connector establishes first connection.
	StateConnecting
	// StateConnected - connector has live transport.
	StateConnected
	// StateReconnecting - transport broke, connector tries to reestablish it.
	StateReconnecting
	// StateFaulted - reconnection attempts were exhausted.
	StateFaulted
	// StateClosed - connector were closed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

const bufSize = 64 * 1024

// Connector is a pipelined connection to single redis server.
//
// Responses are matched to requests by order only, so every request is enqueued
// and written under one lock. Connector is safe for concurrent use.
// It reconnects on transport failure, but never retries requests.
type Connector struct {
	addr   string
	ep     Endpoint
	opts   Opts
	dialer Dialer

	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once

	state atomic.Uint32

	// wmu guards t, ready, lastErr, state transitions and wire order.
	wmu     sync.Mutex
	t       *transport
	ready   chan struct{}
	lastErr error

	// rmu is held by whoever reads responses.
	rmu   sync.Mutex
	queue futures

	bufs     *bufpool.Pool
	sendq    chan *sendItem
	asyncN   atomic.Int64
	draining atomic.Bool

	hmu      sync.Mutex
	handlers []func(*Connector) error

	// callbacks of asynchronous requests, in completion order
	callbacks internal.Serial
	metrics   *connMetrics
}

type transport struct {
	conn     net.Conn
	dio      *deadlineIO
	r        *redis.Reader
	w        *bufio.Writer
	streamed atomic.Bool

	mu  sync.Mutex
	err error
}

// sendItem is a request passed to sender goroutine.
// Bytes are in buf if set, otherwise in bctx segment.
type sendItem struct {
	t    *transport
	bctx *bufpool.Context
	buf  []byte
	// wait is set when writer awaits bctx.Done and releases bctx itself.
	wait bool
}

// Connect establishes new connection to redis server at addr.
// Connector is closed when ctx is done.
func Connect(ctx context.Context, addr string, opts Opts) (*Connector, error) {
	if ctx == nil {
		return nil, redis.ErrContextIsNil.NewWithNoMessage()
	}
	ep, err := ParseEndpoint(addr)
	if err != nil {
		return nil, err
	}
	if opts.TLS != nil {
		ep.TLS = opts.TLS
	}
	opts.normalize()

	c := &Connector{
		addr:    addr,
		ep:      ep,
		opts:    opts,
		dialer:  opts.Dialer,
		closed:  make(chan struct{}),
		ready:   make(chan struct{}),
		bufs:    bufpool.New(opts.AsyncConcurrency, opts.AsyncBufferSize),
		sendq:   make(chan *sendItem, opts.AsyncConcurrency*2),
		metrics: newConnMetrics(addr),
	}
	if c.dialer == nil {
		c.dialer = NewNetDialer(ep, opts)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state.Store(uint32(StateConnecting))

	c.report(LogConnecting{})
	t, err := c.establish(ctx)
	if err != nil {
		c.report(LogConnectFailed{Error: err})
		c.cancel()
		c.bufs.Close()
		c.state.Store(uint32(StateDisconnected))
		return nil, err
	}
	c.wmu.Lock()
	c.t = t
	c.state.Store(uint32(StateConnected))
	close(c.ready)
	c.wmu.Unlock()
	c.reportConnected(t)

	go c.sender()
	context.AfterFunc(c.ctx, c.Close)
	return c, nil
}

// IsConnected reports if connector has live transport now.
func (c *Connector) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns current state.
func (c *Connector) State() State {
	return State(c.state.Load())
}

// Addr returns configured address.
func (c *Connector) Addr() string {
	return c.addr
}

// Endpoint returns parsed address.
func (c *Connector) Endpoint() Endpoint {
	return c.ep
}

// RemoteAddr is address of redis socket.
func (c *Connector) RemoteAddr() string {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.t == nil {
		return ""
	}
	return c.t.conn.RemoteAddr().String()
}

// LocalAddr is outgoing socket addr.
func (c *Connector) LocalAddr() string {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.t == nil {
		return ""
	}
	return c.t.conn.LocalAddr().String()
}

// Handle returns user specified handle from Opts.
func (c *Connector) Handle() interface{} {
	return c.opts.Handle
}

// Encoding returns text encoding of requests and bulk strings (nil is UTF-8).
func (c *Connector) Encoding() encoding.Encoding {
	return c.opts.Encoding
}

// Pending returns number of requests awaiting response.
func (c *Connector) Pending() int {
	return c.queue.len()
}

// OnReconnected registers handler called after transport were reestablished.
// Handlers run synchronously on reconnecting goroutine before writers waiting for
// reconnection are released; a slow handler delays them.
// Handler error is reported to Logger as LogHandlerFailed.
func (c *Connector) OnReconnected(h func(*Connector) error) {
	c.hmu.Lock()
	c.handlers = append(c.handlers, h)
	c.hmu.Unlock()
}

func (c *Connector) String() string {
	return fmt.Sprintf("*redisconn.Connector{addr: %s}", c.addr)
}

// Ping sends PING and checks response.
func (c *Connector) Ping() error {
	s, err := Do[string](c, redis.NewCommand[string](redis.Status, "PING"))
	if err != nil {
		return err
	}
	if s != "PONG" {
		return redis.ErrPing.New("ping response mismatch").
			WithProperty(EKConnection, c).
			WithProperty(redis.EKResponse, s)
	}
	return nil
}

// Write encodes request, enqueues it and writes it to the socket on calling goroutine.
// Error is returned only if request were not sent; otherwise result comes through Future.
func (c *Connector) Write(d redis.Descriptor) (*Future, error) {
	req := d.Request()
	if redis.Dangerous(req.Cmd) {
		return nil, forbidden(req)
	}
	buf, err := redis.AppendRequest(nil, c.opts.Encoding, req)
	if err != nil {
		return nil, err
	}
	f := newFuture(c, d, nil)
	if err := c.write(f, buf); err != nil {
		return nil, err
	}
	return f, nil
}

// Call writes request and waits for its result.
func (c *Connector) Call(d redis.Descriptor) (interface{}, error) {
	f, err := c.Write(d)
	if err != nil {
		return nil, err
	}
	return f.Wait()
}

// Do calls command and returns its typed result.
func Do[T any](c *Connector, cmd redis.Command[T]) (T, error) {
	return redis.As[T](c.Call(cmd))
}

// Send encodes request into buffer segment and passes it to sender goroutine.
// It blocks only until a segment is available. Responses are read by background loop.
func (c *Connector) Send(d redis.Descriptor) *Future {
	return c.send(d, nil)
}

// SendCallback is like Send, but cb is called with result.
// Callbacks of one connector are called sequentially in response order,
// so they should not block.
func (c *Connector) SendCallback(d redis.Descriptor, cb Callback) *Future {
	return c.send(d, cb)
}

// Stream writes request without awaiting result. Responses should be read with ReadNext.
// It is the only way to issue commands switching connection into streaming mode.
func (c *Connector) Stream(d redis.Descriptor) error {
	buf, err := redis.AppendRequest(nil, c.opts.Encoding, d.Request())
	if err != nil {
		return err
	}
	return c.transmitSync(buf, func(t *transport) {
		t.streamed.Store(true)
	})
}

// ReadNext reads one frame from stream with p, without receive timeout.
// Errors do not change connector's state: use Abort to drop broken transport.
func ReadNext[T any](c *Connector, p redis.Parser[T]) (T, error) {
	var zero T
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if n := c.queue.len(); n > 0 {
		return zero, ErrStreamConflict.New("%d calls are pending", n).WithProperty(EKConnection, c)
	}
	c.wmu.Lock()
	t := c.t
	c.wmu.Unlock()
	if t == nil {
		return zero, c.unavailable()
	}
	t.dio.unbound()
	defer t.dio.bound()
	v, err := p.Parse(t.r)
	if redis.HardError(err) {
		if terr := t.failure(); terr != nil {
			err = terr
		}
	}
	return v, err
}

// Abort drops current transport as broken and starts reconnection.
func (c *Connector) Abort(err error) {
	c.wmu.Lock()
	t := c.t
	c.wmu.Unlock()
	if t == nil {
		return
	}
	if !errorx.HasTrait(err, redis.ErrTraitConnectivity) {
		err = redis.ErrIO.Wrap(err, "transport aborted")
	}
	c.fail(t, err)
}

// WaitConnected blocks until connector is connected, or reconnection failed, or ctx is done.
func (c *Connector) WaitConnected(ctx context.Context) error {
	for {
		c.wmu.Lock()
		st := c.State()
		ready := c.ready
		c.wmu.Unlock()
		switch st {
		case StateConnected:
			return nil
		case StateConnecting, StateReconnecting:
			select {
			case <-ready:
			case <-c.closed:
			case <-ctx.Done():
				return redis.ErrContextClosed.Wrap(ctx.Err(), "wait for connection cancelled")
			}
		default:
			return c.unavailable()
		}
	}
}

// Reconnect reestablishes connection of faulted or disconnected connector.
func (c *Connector) Reconnect(ctx context.Context) error {
	c.wmu.Lock()
	switch c.State() {
	case StateFaulted, StateDisconnected:
	case StateClosed:
		c.wmu.Unlock()
		return c.unavailable()
	default:
		c.wmu.Unlock()
		return nil
	}
	c.state.Store(uint32(StateConnecting))
	c.ready = make(chan struct{})
	ready := c.ready
	c.wmu.Unlock()

	c.report(LogConnecting{})
	t, err := c.establish(ctx)

	c.wmu.Lock()
	if c.State() != StateConnecting {
		c.wmu.Unlock()
		if t != nil {
			t.destroy()
		}
		return c.unavailable()
	}
	if err != nil {
		c.state.Store(uint32(StateDisconnected))
		c.lastErr = err
	} else {
		c.t = t
		c.state.Store(uint32(StateConnected))
	}
	close(ready)
	c.wmu.Unlock()

	if err != nil {
		c.report(LogConnectFailed{Error: err})
		return err
	}
	c.reportConnected(t)
	return nil
}

// Closed returns channel closed after Close.
func (c *Connector) Closed() <-chan struct{} {
	return c.closed
}

// Close closes connector forever.
// Every pending request is faulted with ErrContextClosed.
func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wmu.Lock()
		t := c.t
		c.t = nil
		c.state.Store(uint32(StateClosed))
		close(c.closed)
		c.wmu.Unlock()

		err := redis.ErrContextClosed.New("connector closed").WithProperty(EKConnection, c)
		pending := c.queue.drainAll()
		if t != nil {
			t.setErr(err)
			if len(pending) > 0 || t.streamed.Load() {
				t.destroy()
			} else {
				t.release()
			}
		}
		for _, f := range pending {
			f.resolve(nil, err)
		}
		c.bufs.Close()
		c.report(LogContextClosed{Error: context.Cause(c.ctx)})
	})
}

/********** private api **************/

func (c *Connector) report(event LogEvent) {
	c.opts.Logger.Report(c, event)
}

func (c *Connector) reportConnected(t *transport) {
	c.report(LogConnected{
		LocalAddr:  t.conn.LocalAddr().String(),
		RemoteAddr: t.conn.RemoteAddr().String(),
	})
}

func forbidden(req redis.Request) error {
	return redis.ErrCommandForbidden.New("%s switches connection into streaming mode", req.Verb()).
		WithProperty(redis.EKRequest, req)
}

// unavailable returns error for state in which nothing could be sent.
func (c *Connector) unavailable() error {
	c.wmu.Lock()
	st, last := c.State(), c.lastErr
	c.wmu.Unlock()
	switch st {
	case StateClosed:
		return redis.ErrContextClosed.New("connector closed").WithProperty(EKConnection, c)
	case StateFaulted:
		return last
	}
	if last != nil {
		return ErrNotConnected.Wrap(last, "connector is %s", st).WithProperty(EKConnection, c)
	}
	return ErrNotConnected.New("connector is %s", st).WithProperty(EKConnection, c)
}

// lockWriter locks wmu and returns live transport.
// It waits while connector is connecting.
func (c *Connector) lockWriter() (*transport, error) {
	for {
		c.wmu.Lock()
		switch c.State() {
		case StateConnected:
			return c.t, nil
		case StateConnecting, StateReconnecting:
			ready := c.ready
			c.wmu.Unlock()
			select {
			case <-ready:
			case <-c.closed:
			}
			continue
		}
		c.wmu.Unlock()
		return nil, c.unavailable()
	}
}

func (c *Connector) establish(ctx context.Context) (*transport, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, err := c.dialer.Dial(dctx)
	if err != nil {
		if _, ok := err.(*errorx.Error); ok {
			return nil, err
		}
		return nil, ErrDial.Wrap(err, "could not connect to %s", c.ep).WithProperty(EKConnection, c)
	}
	t := newTransport(conn, c.opts)
	if err := c.handshake(t); err != nil {
		t.destroy()
		return nil, err
	}
	return t, nil
}

func newTransport(conn net.Conn, opts Opts) *transport {
	dio := newDeadlineIO(conn, opts.ReceiveTimeout, opts.SendTimeout)
	return &transport{
		conn: conn,
		dio:  dio,
		r:    redis.NewReader(bufio.NewReaderSize(dio, bufSize), opts.Encoding),
		w:    bufio.NewWriterSize(dio, bufSize),
	}
}

func (c *Connector) handshake(t *transport) error {
	reqs := make([]redis.Request, 0, 4)
	if c.opts.Password != "" {
		if c.opts.Username != "" {
			reqs = append(reqs, redis.Req("AUTH", c.opts.Username, c.opts.Password))
		} else {
			reqs = append(reqs, redis.Req("AUTH", c.opts.Password))
		}
	}
	reqs = append(reqs, redis.Req("PING"))
	if c.opts.DB != 0 {
		reqs = append(reqs, redis.Req("SELECT", c.opts.DB))
	}
	if c.opts.ClientName != "" {
		reqs = append(reqs, redis.Req("CLIENT SETNAME", c.opts.ClientName))
	}
	var req []byte
	for _, r := range reqs {
		var err error
		if req, err = redis.AppendRequest(req, c.opts.Encoding, r); err != nil {
			return ErrConnSetup.Wrap(err, "could not encode %s", r.Verb()).WithProperty(EKConnection, c)
		}
	}
	if _, err := t.w.Write(req); err != nil {
		return redis.WrapIO(err)
	}
	if err := t.w.Flush(); err != nil {
		return redis.WrapIO(err)
	}

	// Password response
	if c.opts.Password != "" {
		if _, err := redis.OK.Parse(t.r); err != nil {
			if errorx.IsOfType(err, redis.ErrAuth) {
				return redis.AsErrorx(err).WithProperty(EKConnection, c)
			}
			return ErrConnSetup.Wrap(err, "AUTH failed").WithProperty(EKConnection, c)
		}
	}
	// PING Response
	s, err := redis.Status.Parse(t.r)
	if err != nil {
		return ErrConnSetup.Wrap(err, "PING failed").WithProperty(EKConnection, c)
	}
	if s != "PONG" {
		return ErrConnSetup.New("ping response mismatch").
			WithProperty(EKConnection, c).
			WithProperty(redis.EKResponse, s)
	}
	// SELECT DB Response
	if c.opts.DB != 0 {
		if _, err := redis.OK.Parse(t.r); err != nil {
			return ErrConnSetup.Wrap(err, "SELECT db failed").
				WithProperty(EKConnection, c).
				WithProperty(EKDb, c.opts.DB)
		}
	}
	if c.opts.ClientName != "" {
		if _, err := redis.OK.Parse(t.r); err != nil {
			return ErrConnSetup.Wrap(err, "CLIENT SETNAME failed").WithProperty(EKConnection, c)
		}
	}
	return nil
}

// write enqueues f and sends buf in one step.
// Error is returned only if f were not enqueued; write error faults f through fail.
func (c *Connector) write(f *Future, buf []byte) error {
	queued := false
	err := c.transmitSync(buf, func(t *transport) {
		f.t = t
		c.queue.push(f)
		queued = true
	})
	if queued {
		return nil
	}
	return err
}

// transmitSync writes buf to live transport on calling goroutine.
// enqueue is called under wmu right before buf is passed to the wire.
// While asynchronous sends are in flight, buf goes through sender to keep wire order,
// and completion is awaited on Done of a buffer context.
func (c *Connector) transmitSync(buf []byte, enqueue func(*transport)) error {
	var bctx *bufpool.Context
	defer func() {
		if bctx != nil {
			c.bufs.Release(bctx)
		}
	}()
	for {
		t, err := c.lockWriter()
		if err != nil {
			return err
		}
		if c.asyncN.Load() == 0 {
			enqueue(t)
			_, err = t.w.Write(buf)
			if err == nil {
				err = t.w.Flush()
			}
			c.wmu.Unlock()
			if err != nil {
				err = redis.WrapIO(err)
				c.fail(t, err)
			}
			return err
		}
		if bctx != nil {
			enqueue(t)
			c.asyncN.Add(1)
			c.sendq <- &sendItem{t: t, bctx: bctx, buf: buf, wait: true}
			c.wmu.Unlock()
			return <-bctx.Done
		}
		// segment must not be awaited under wmu: its holders may wait for wmu
		c.wmu.Unlock()
		if bctx, err = c.bufs.Acquire(c.ctx); err != nil {
			bctx = nil
			return redis.ErrContextClosed.Wrap(err, "connector closed").WithProperty(EKConnection, c)
		}
	}
}

func (c *Connector) send(d redis.Descriptor, cb Callback) *Future {
	f := newFuture(c, d, cb)
	req := d.Request()
	if redis.Dangerous(req.Cmd) {
		f.resolve(nil, forbidden(req))
		return f
	}
	bctx, err := c.bufs.Acquire(c.ctx)
	if err != nil {
		f.resolve(nil, redis.ErrContextClosed.Wrap(err, "connector closed"))
		return f
	}
	it := &sendItem{bctx: bctx}
	b, err := redis.AppendRequest(bctx.Buf[:0], c.opts.Encoding, req)
	if err != nil {
		c.bufs.Release(bctx)
		f.resolve(nil, err)
		return f
	}
	if len(b) > cap(bctx.Buf) {
		// request does not fit into segment, it were encoded into heap
		c.bufs.Release(bctx)
		it.bctx = nil
		it.buf = b
	} else {
		bctx.Len = len(b)
	}

	t, err := c.lockWriter()
	if err != nil {
		it.finish(c)
		f.resolve(nil, err)
		return f
	}
	f.t, it.t = t, t
	c.queue.push(f)
	c.asyncN.Add(1)
	c.sendq <- it
	c.wmu.Unlock()
	c.startDrain()
	return f
}

func (it *sendItem) bytes() []byte {
	if it.buf != nil {
		return it.buf
	}
	return it.bctx.Bytes()
}

func (it *sendItem) finish(c *Connector) {
	if it.bctx != nil {
		c.bufs.Release(it.bctx)
		it.bctx = nil
	}
}

// sender writes asynchronous requests in order they were enqueued.
func (c *Connector) sender() {
	for {
		select {
		case it := <-c.sendq:
			c.transmit(it)
		case <-c.closed:
			for {
				select {
				case it := <-c.sendq:
					c.transmit(it)
				default:
					return
				}
			}
		}
	}
}

func (c *Connector) transmit(it *sendItem) {
	t := it.t
	err := t.failure()
	if err == nil {
		_, err = t.w.Write(it.bytes())
		if err == nil && len(c.sendq) == 0 {
			err = t.w.Flush()
		}
		if err != nil {
			err = redis.WrapIO(err)
			// fail needs wmu, which may be held by writer blocked on sendq
			go c.fail(t, err)
		}
	}
	c.asyncN.Add(-1)
	if it.wait {
		it.bctx.Done <- err
		return
	}
	it.finish(c)
}

// await reads responses until f is resolved, unless somebody else does it.
func (c *Connector) await(f *Future) {
	for {
		if f.Resolved() {
			return
		}
		c.rmu.Lock()
		if f.Resolved() {
			c.rmu.Unlock()
			return
		}
		if c.queue.peek() == nil {
			// f is being faulted
			c.rmu.Unlock()
			<-f.done
			return
		}
		c.readOne()
		c.rmu.Unlock()
	}
}

func (c *Connector) startDrain() {
	if c.draining.CompareAndSwap(false, true) {
		go c.drain()
	}
}

// drain reads responses while there are pending requests.
func (c *Connector) drain() {
	for {
		c.rmu.Lock()
		if c.queue.peek() == nil {
			c.draining.Store(false)
			c.rmu.Unlock()
			if c.queue.peek() == nil || !c.draining.CompareAndSwap(false, true) {
				return
			}
			continue
		}
		c.readOne()
		c.rmu.Unlock()
	}
}

// readOne decodes response of queue head; rmu must be held.
func (c *Connector) readOne() {
	f := c.queue.peek()
	if f == nil {
		return
	}
	t := f.t
	if f.block {
		t.dio.unbound()
	}
	res, err := f.desc.Decode(t.r)
	if f.block {
		t.dio.bound()
	}
	if redis.StreamBroken(err) {
		if terr := t.failure(); terr != nil {
			err = terr
		}
		if c.queue.popIf(f) {
			c.breakTransport(t, err, f)
		} else {
			c.fail(t, err)
		}
		return
	}
	c.queue.popIf(f)
	f.resolve(res, err)
}

// fail closes broken transport, faults requests written to it and starts reconnection.
// It does something only on first call for t.
func (c *Connector) fail(t *transport, err error) {
	c.breakTransport(t, err, nil)
}

// breakTransport is fail, which resolves head with err before other requests of t.
func (c *Connector) breakTransport(t *transport, err error, head *Future) {
	if !t.setErr(err) {
		if head != nil {
			head.resolve(nil, t.failure())
		}
		return
	}
	c.report(LogDisconnected{
		Error:      err,
		LocalAddr:  t.conn.LocalAddr().String(),
		RemoteAddr: t.conn.RemoteAddr().String(),
	})
	t.destroy()

	c.wmu.Lock()
	reconnect := false
	if c.t == t {
		c.t = nil
		if c.State() == StateConnected {
			c.state.Store(uint32(StateReconnecting))
			c.ready = make(chan struct{})
			reconnect = true
		}
	}
	c.wmu.Unlock()

	if head != nil {
		head.resolve(nil, err)
	}
	ferr := err
	if !errorx.HasTrait(err, redis.ErrTraitConnectivity) {
		ferr = redis.ErrIO.Wrap(err, "connection stream out of sync")
	}
	for _, f := range c.queue.removeTransport(t) {
		f.resolve(nil, ferr)
	}
	if reconnect {
		go c.reconnect(err)
	}
}

func (c *Connector) reconnect(cause error) {
	c.metrics.reconnects.Inc()
	err := cause
	attempts := 0
	for attempts < c.opts.ReconnectAttempts {
		if attempts > 0 {
			select {
			case <-time.After(c.opts.ReconnectWait):
			case <-c.closed:
				return
			}
		}
		attempts++
		c.report(LogReconnecting{Attempt: attempts, Error: err})
		var t *transport
		if t, err = c.establish(c.ctx); err != nil {
			c.report(LogConnectFailed{Error: err})
			continue
		}

		c.wmu.Lock()
		if c.State() != StateReconnecting {
			c.wmu.Unlock()
			t.destroy()
			return
		}
		c.t = t
		c.state.Store(uint32(StateConnected))
		ready := c.ready
		c.wmu.Unlock()

		c.reportConnected(t)
		c.report(LogReconnected{Attempts: attempts})
		c.hmu.Lock()
		handlers := slices.Clone(c.handlers)
		c.hmu.Unlock()
		for _, h := range handlers {
			if herr := h(c); herr != nil {
				c.report(LogHandlerFailed{Error: herr})
			}
		}
		close(ready)
		return
	}

	ferr := ErrReconnectExhausted.Wrap(err, "gave up after %d attempts", attempts).
		WithProperty(EKAttempts, attempts).
		WithProperty(EKConnection, c)
	c.wmu.Lock()
	if c.State() != StateReconnecting {
		c.wmu.Unlock()
		return
	}
	c.state.Store(uint32(StateFaulted))
	c.lastErr = ferr
	ready := c.ready
	c.wmu.Unlock()
	close(ready)

	for _, f := range c.queue.drainAll() {
		f.resolve(nil, ferr)
	}
	c.metrics.faults.Inc()
	c.report(LogFaulted{Attempts: attempts, Error: err})
}

func (t *transport) setErr(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return false
	}
	t.err = err
	return true
}

func (t *transport) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// release closes connection; pooled connection is returned to its pool.
func (t *transport) release() {
	t.conn.Close()
}

// destroy closes connection for good, even if it is pooled.
func (t *transport) destroy() {
	if d, ok := t.conn.(interface{ Destroy() }); ok {
		d.Destroy()
		return
	}
	t.conn.Close()
}
