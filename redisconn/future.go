package redisconn

import (
	"sync/atomic"
	"time"

	"github.com/joomcode/errorx"

	"github.com/joomcode/redisnet/redis"
)

// Callback receives result of asynchronous request.
type Callback func(res interface{}, err error)

// Future is a pending call: it is resolved or faulted exactly once.
type Future struct {
	desc  redis.Descriptor
	t     *transport
	conn  *Connector
	block bool
	start time.Time
	cb    Callback

	state uint32
	done  chan struct{}
	res   interface{}
	err   error
}

func newFuture(c *Connector, d redis.Descriptor, cb Callback) *Future {
	return &Future{
		desc:  d,
		conn:  c,
		block: redis.Blocking(d.Request().Cmd),
		start: time.Now(),
		cb:    cb,
		done:  make(chan struct{}),
	}
}

// Request returns request of the call.
func (f *Future) Request() redis.Request {
	return f.desc.Request()
}

// Done is closed when future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports if result is known.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until result is known. If nobody reads responses,
// current goroutine reads them until this future is resolved.
func (f *Future) Wait() (interface{}, error) {
	f.conn.await(f)
	return f.res, f.err
}

// Result returns result of resolved future.
func (f *Future) Result() (interface{}, error) {
	<-f.done
	return f.res, f.err
}

func (f *Future) resolve(res interface{}, err error) {
	if !atomic.CompareAndSwapUint32(&f.state, 0, 1) {
		return
	}
	c := f.conn
	if ex := errorx.Cast(err); ex != nil && redis.HardError(err) {
		err = withNewProperty(ex, EKConnection, c)
	}
	f.res, f.err = res, err
	close(f.done)
	nanos := time.Since(f.start).Nanoseconds()
	c.metrics.request(nanos, err)
	c.opts.Logger.ReqStat(c, f.desc.Request(), res, err, nanos)
	if f.cb != nil {
		cb := f.cb
		c.callbacks.Go(func() { cb(res, err) })
	}
}
