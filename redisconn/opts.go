package redisconn

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/joomcode/redisnet/redis"
)

const (
	defaultReconnectAttempts = 3
	defaultReconnectWait     = 200 * time.Millisecond
	defaultDialTimeout       = 2 * time.Second
	defaultKeepAlive         = 300 * time.Millisecond
	defaultIOTimeout         = 1 * time.Second
	defaultAsyncConcurrency  = 64
	defaultAsyncBufferSize   = 16 * 1024
)

// Opts - options for Connector
type Opts struct {
	// ReceiveTimeout - timeout on read from socket.
	// If ReceiveTimeout == 0, then it is set to 1s.
	// If ReceiveTimeout < 0, then timeout is disabled.
	ReceiveTimeout time.Duration
	// SendTimeout - timeout on write to socket.
	// If SendTimeout == 0, then it is set to 1s.
	// If SendTimeout < 0, then timeout is disabled.
	SendTimeout time.Duration
	// ReconnectAttempts is a number of attempts to reestablish broken connection
	// before connector becomes faulted.
	// If ReconnectAttempts == 0, then default 3 is used.
	// If ReconnectAttempts < 0, then no reconnection will be performed.
	ReconnectAttempts int
	// ReconnectWait is a pause between reconnection attempts.
	// If ReconnectWait == 0, then default 200ms is used.
	ReconnectWait time.Duration
	// DialTimeout is timeout for net.Dialer
	DialTimeout time.Duration
	// TCPKeepAlive - KeepAlive parameter for net.Dialer
	TCPKeepAlive time.Duration
	// AsyncConcurrency - maximum number of asynchronous sends in flight.
	AsyncConcurrency int
	// AsyncBufferSize - size of buffer segment for single asynchronous send.
	// Requests larger than segment are sent from heap buffer.
	AsyncBufferSize int
	// Encoding of text arguments and bulk strings. nil means UTF-8.
	Encoding encoding.Encoding
	// DB - database number
	DB int
	// Username for AUTH (ACL)
	Username string
	// Password for AUTH
	Password string
	// ClientName is set with CLIENT SETNAME if not empty.
	ClientName string
	// TLS - config for encrypted connection. Overrides one parsed from address.
	TLS *tls.Config
	// Handle is returned with Connector.Handle()
	Handle interface{}
	// Logger
	Logger Logger
	// Dialer opens transport connections. Default dials Endpoint directly.
	// redispool.SocketPool could be used to take connections from pool.
	Dialer Dialer
}

func (opts *Opts) normalize() {
	if opts.ReceiveTimeout == 0 {
		opts.ReceiveTimeout = defaultIOTimeout
	} else if opts.ReceiveTimeout < 0 {
		opts.ReceiveTimeout = 0
	}
	if opts.SendTimeout == 0 {
		opts.SendTimeout = defaultIOTimeout
	} else if opts.SendTimeout < 0 {
		opts.SendTimeout = 0
	}
	if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	} else if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = defaultReconnectWait
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.TCPKeepAlive == 0 {
		opts.TCPKeepAlive = defaultKeepAlive
	} else if opts.TCPKeepAlive < 0 {
		opts.TCPKeepAlive = 0
	}
	if opts.AsyncConcurrency <= 0 {
		opts.AsyncConcurrency = defaultAsyncConcurrency
	}
	if opts.AsyncBufferSize <= 0 {
		opts.AsyncBufferSize = defaultAsyncBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger{}
	}
}

// Endpoint identifies server.
type Endpoint struct {
	// Network is "tcp" or "unix".
	Network string
	// Address is host:port or path to unix socket.
	Address string
	// TLS is set for encrypted connections.
	TLS *tls.Config
}

// ParseEndpoint parses address.
// Recognized forms: "host:port", "tcp://host:port", "tls://host:port",
// "unix:///path/to/socket", "/path/to/socket", "./socket".
func ParseEndpoint(addr string) (Endpoint, error) {
	if addr == "" {
		return Endpoint{}, redis.ErrNoAddressProvided.NewWithNoMessage()
	}
	ep := Endpoint{Network: "tcp", Address: addr}
	switch {
	case addr[0] == '.' || addr[0] == '/':
		ep.Network = "unix"
	case strings.HasPrefix(addr, "unix://"):
		ep.Network = "unix"
		ep.Address = addr[len("unix://"):]
	case strings.HasPrefix(addr, "tcp://"):
		ep.Address = addr[len("tcp://"):]
	case strings.HasPrefix(addr, "tls://"):
		ep.Address = addr[len("tls://"):]
		ep.TLS = &tls.Config{}
	}
	if ep.Address == "" {
		return Endpoint{}, redis.ErrNoAddressProvided.New("empty address in %q", addr)
	}
	if ep.Network == "tcp" {
		if _, _, err := net.SplitHostPort(ep.Address); err != nil {
			return Endpoint{}, redis.ErrNoAddressProvided.Wrap(err, "malformed address %q", addr)
		}
	}
	return ep, nil
}

// Host returns host part of tcp address.
func (e Endpoint) Host() string {
	if e.Network != "tcp" {
		return ""
	}
	host, _, _ := net.SplitHostPort(e.Address)
	return host
}

func (e Endpoint) String() string {
	switch {
	case e.Network == "unix":
		return "unix://" + e.Address
	case e.TLS != nil:
		return "tls://" + e.Address
	}
	return e.Address
}

// Dialer opens transport connection to endpoint.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// DialerFunc adapts function to Dialer.
type DialerFunc func(ctx context.Context) (net.Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// NetDialer dials endpoint directly.
type NetDialer struct {
	Endpoint  Endpoint
	Timeout   time.Duration
	KeepAlive time.Duration
}

// NewNetDialer returns dialer for endpoint with timeouts from opts.
func NewNetDialer(ep Endpoint, opts Opts) NetDialer {
	opts.normalize()
	return NetDialer{Endpoint: ep, Timeout: opts.DialTimeout, KeepAlive: opts.TCPKeepAlive}
}

// Dial implements Dialer.
func (d NetDialer) Dial(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{
		Timeout:       d.Timeout,
		FallbackDelay: d.Timeout / 2,
		KeepAlive:     d.KeepAlive,
	}
	if d.Endpoint.TLS == nil {
		return nd.DialContext(ctx, d.Endpoint.Network, d.Endpoint.Address)
	}
	cfg := d.Endpoint.TLS.Clone()
	if cfg.ServerName == "" {
		if host := d.Endpoint.Host(); net.ParseIP(host) == nil {
			cfg.ServerName = host
		}
	}
	td := &tls.Dialer{NetDialer: nd, Config: cfg}
	return td.DialContext(ctx, d.Endpoint.Network, d.Endpoint.Address)
}
