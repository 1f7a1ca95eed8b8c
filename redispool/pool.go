package redispool

import (
	"context"
	"sync"

	"github.com/joomcode/redisnet/redisconn"
)

// Pool hands out connectors whose transports are leased from SocketPool.
//
// Connector returns its socket to the pool on Close, and destroys it if connection
// broke or were used for streaming. Close connector only when it has no pending
// requests: socket is returned as is.
type Pool struct {
	sockets *SocketPool
	opts    Opts

	mu      sync.Mutex
	clients map[*redisconn.Connector]struct{}
	closed  bool
}

// New creates pool for endpoint at addr.
func New(addr string, opts Opts) (*Pool, error) {
	sockets, err := NewSocketPool(addr, opts)
	if err != nil {
		return nil, err
	}
	opts.normalize()
	return &Pool{
		sockets: sockets,
		opts:    opts,
		clients: make(map[*redisconn.Connector]struct{}),
	}, nil
}

// Client returns connector bound to pooled socket.
// Connector is closed when ctx is done or Pool is closed.
// It fails with ErrPoolExhausted if every socket is leased.
func (p *Pool) Client(ctx context.Context) (*redisconn.Connector, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, p.sockets.closedErr()
	}

	copts := p.opts.ConnOpts
	copts.Dialer = p.sockets
	conn, err := redisconn.Connect(ctx, p.sockets.Addr(), copts)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return nil, p.sockets.closedErr()
	}
	p.clients[conn] = struct{}{}
	p.mu.Unlock()
	go func() {
		<-conn.Closed()
		p.mu.Lock()
		delete(p.clients, conn)
		p.mu.Unlock()
	}()
	return conn, nil
}

// Sockets returns underlying socket pool.
func (p *Pool) Sockets() *SocketPool {
	return p.sockets
}

// Stat returns socket pool statistics.
func (p *Pool) Stat() Stat {
	return p.sockets.Stat()
}

// Clients returns number of open connectors.
func (p *Pool) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close closes all connectors and then socket pool.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	clients := make([]*redisconn.Connector, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.mu.Unlock()

	for _, conn := range clients {
		conn.Close()
	}
	p.sockets.Close()
}
