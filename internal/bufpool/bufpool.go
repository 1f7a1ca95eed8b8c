// Package bufpool implements bounded set of send buffers carved from one arena.
package bufpool

import (
	"context"
	"sync"

	"github.com/joomcode/errorx"
	"golang.org/x/sync/semaphore"
)

var (
	// Errors is a namespace of buffer pool errors.
	Errors = errorx.NewNamespace("bufpool")
	// ErrPoolClosed - pool were closed.
	ErrPoolClosed = Errors.NewType("closed")
)

// Context is a segment of the arena paired with reusable completion channel.
type Context struct {
	// Buf is the segment. Its capacity never changes.
	Buf []byte
	// Len is number of meaningful bytes in Buf.
	Len int
	// Done receives result of asynchronous operation using the context,
	// when its initiator waits for completion. It holds at most one result
	// and is emptied on Release.
	Done chan error

	pool *Pool
	idx  int
}

// Bytes returns filled part of segment.
func (c *Context) Bytes() []byte {
	return c.Buf[:c.Len]
}

// Pool hands out at most Size contexts at a time.
type Pool struct {
	sem   *semaphore.Weighted
	size  int
	segsz int

	mu     sync.Mutex
	arena  []byte
	free   []*Context
	closed bool
}

// New allocates arena of size*segment bytes and slices it into size contexts.
func New(size, segment int) *Pool {
	if size <= 0 {
		size = 1
	}
	if segment <= 0 {
		segment = 4096
	}
	p := &Pool{
		sem:   semaphore.NewWeighted(int64(size)),
		size:  size,
		segsz: segment,
		arena: make([]byte, size*segment),
		free:  make([]*Context, 0, size),
	}
	for i := 0; i < size; i++ {
		p.free = append(p.free, p.newContext(i))
	}
	return p
}

// Size is the maximum number of contexts handed out concurrently.
func (p *Pool) Size() int {
	return p.size
}

// SegmentSize is the capacity of each context buffer.
func (p *Pool) SegmentSize() int {
	return p.segsz
}

// Acquire blocks until a context is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Context, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.sem.Release(1)
		return nil, ErrPoolClosed.NewWithNoMessage()
	}
	c := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	c.Len = 0
	return c, nil
}

// Release returns context to the pool.
// Context whose buffer does not point into pool's arena is discarded.
// One unit of capacity is returned in any case.
func (p *Pool) Release(c *Context) {
	defer p.sem.Release(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if c == nil || c.pool != p {
		return
	}
	if p.closed {
		c.Buf, c.pool = nil, nil
		return
	}
	if !p.owns(c.Buf, c.idx) {
		// context were tampered with: dispose it, segment gets fresh context
		c.Buf, c.pool = nil, nil
		p.free = append(p.free, p.newContext(c.idx))
		return
	}
	select {
	case <-c.Done:
	default:
	}
	c.Buf = c.Buf[:cap(c.Buf)]
	c.Len = 0
	p.free = append(p.free, c)
}

// Close clears the arena and drops all contexts.
// Contexts acquired before Close are discarded on release.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	clear(p.arena)
	for _, c := range p.free {
		c.Buf = nil
		c.pool = nil
	}
	p.free = nil
	p.arena = nil
}

// Available returns number of contexts ready to be acquired.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// owns reports if b is still the segment idx of the arena.
func (p *Pool) owns(b []byte, idx int) bool {
	if cap(b) != p.segsz {
		return false
	}
	return &b[:1][0] == &p.arena[idx*p.segsz]
}

func (p *Pool) newContext(idx int) *Context {
	off := idx * p.segsz
	return &Context{
		Buf:  p.arena[off : off+p.segsz : off+p.segsz],
		Done: make(chan error, 1),
		pool: p,
		idx:  idx,
	}
}
