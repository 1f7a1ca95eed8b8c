package redispool

import (
	"time"

	"github.com/joomcode/redisnet/redisconn"
)

const (
	defaultMaxSockets      = 16
	defaultProbeTimeout    = time.Millisecond
	defaultBreakerTimeout  = time.Second
	defaultBreakerFailures = 5
)

// Opts - options for SocketPool and Pool.
type Opts struct {
	// MaxSockets - maximum number of sockets, leased and idle together.
	// If MaxSockets == 0, then 16 is used.
	MaxSockets int
	// ProbeTimeout - read deadline of liveness probe made on reused socket.
	// If ProbeTimeout == 0, then it is set to 1ms.
	ProbeTimeout time.Duration

	// BreakerFailures - number of consecutive dial failures that opens breaker.
	// If BreakerFailures == 0, then 5 is used.
	// If BreakerFailures < 0, then breaker never opens.
	BreakerFailures int
	// BreakerTimeout - how long breaker stays open before probing dial is allowed.
	// If BreakerTimeout == 0, then it is set to 1s.
	BreakerTimeout time.Duration
	// BreakerMaxRequests - dials allowed while breaker is half-open.
	// 0 means 1.
	BreakerMaxRequests uint32

	// ConnOpts - options for connectors created with Pool.Client.
	// ConnOpts.DialTimeout, ConnOpts.TCPKeepAlive and ConnOpts.TLS are used to dial sockets.
	// If ConnOpts.Dialer is set, sockets are dialed through it.
	ConnOpts redisconn.Opts

	// Logger
	Logger Logger
}

func (opts *Opts) normalize() {
	if opts.MaxSockets <= 0 {
		opts.MaxSockets = defaultMaxSockets
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaultBreakerTimeout
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger{}
	}
}
