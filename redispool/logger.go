package redispool

import (
	"log"

	"github.com/sony/gobreaker/v2"
)

// Logger receives socket pool events.
type Logger interface {
	// Report is called on pool events.
	// Default implementation prints them using standard log package.
	Report(p *SocketPool, event LogEvent)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent() // tagging method
}

// LogDialFailed is an event logged when new socket could not be dialed.
type LogDialFailed struct {
	Error error
}

// LogStale is an event logged when reused socket failed liveness probe.
type LogStale struct {
	LocalAddr string
}

// LogExhausted is an event logged when acquisition failed because pool is full.
type LogExhausted struct {
	MaxSockets int
}

// LogBreakerChanged is an event logged when dial breaker changes state.
type LogBreakerChanged struct {
	From gobreaker.State
	To   gobreaker.State
}

// LogClosed is an event logged when pool is closed.
type LogClosed struct{}

func (LogDialFailed) logEvent()     {}
func (LogStale) logEvent()          {}
func (LogExhausted) logEvent()      {}
func (LogBreakerChanged) logEvent() {}
func (LogClosed) logEvent()         {}

// DefaultLogger is a default Logger implementation.
// Exhaustion is not logged, since it is reported to caller as error.
type DefaultLogger struct{}

// Report implements Logger.Report
func (DefaultLogger) Report(p *SocketPool, event LogEvent) {
	switch ev := event.(type) {
	case LogDialFailed:
		log.Printf("redisnet: pool %s could not dial: %s", p.Addr(), ev.Error.Error())
	case LogStale:
		log.Printf("redisnet: pool %s discards stale socket (localAddr: %s)", p.Addr(), ev.LocalAddr)
	case LogExhausted:
	case LogBreakerChanged:
		log.Printf("redisnet: pool %s dial breaker %s -> %s", p.Addr(), ev.From, ev.To)
	case LogClosed:
		log.Printf("redisnet: pool %s closed", p.Addr())
	default:
		log.Printf("redisnet: unexpected event: %#v", event)
	}
}

// NoopLogger is a Logger implementation that reports nothing.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(*SocketPool, LogEvent) {}
