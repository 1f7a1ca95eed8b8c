package redisconn

import (
	"net"
	"sync/atomic"
	"time"
)

// deadlineIO sets read and write deadlines before every operation.
// Read deadline may be suspended for blocking commands and streams.
type deadlineIO struct {
	c    net.Conn
	rto  time.Duration
	wto  time.Duration
	free atomic.Bool
}

func newDeadlineIO(c net.Conn, rto, wto time.Duration) *deadlineIO {
	return &deadlineIO{c: c, rto: rto, wto: wto}
}

// unbound disables read deadline until bound is called.
func (d *deadlineIO) unbound() {
	d.free.Store(true)
}

func (d *deadlineIO) bound() {
	d.free.Store(false)
}

func (d *deadlineIO) Write(b []byte) (int, error) {
	if d.wto > 0 {
		d.c.SetWriteDeadline(time.Now().Add(d.wto))
	}
	return d.c.Write(b)
}

func (d *deadlineIO) Read(b []byte) (int, error) {
	if d.rto > 0 && !d.free.Load() {
		d.c.SetReadDeadline(time.Now().Add(d.rto))
	} else {
		d.c.SetReadDeadline(time.Time{})
	}
	return d.c.Read(b)
}
