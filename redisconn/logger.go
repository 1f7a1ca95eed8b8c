package redisconn

import (
	"log"

	"github.com/joomcode/redisnet/redis"
)

// Logger is a type for custom event and stat reporter.
type Logger interface {
	// Report will be called when some events happens during connector's lifetime.
	// Default implementation just prints this information using standard log package.
	Report(conn *Connector, event LogEvent)
	// ReqStat is called after request receives it's answer with request/result information
	// and time spend to fulfill request.
	// Default implementation is no-op.
	ReqStat(conn *Connector, req redis.Request, res interface{}, err error, nanos int64)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent() // tagging method
}

// LogConnecting is an event logged when connector starts dialing.
type LogConnecting struct{}

// LogConnected is an event logged when connection established.
type LogConnected struct {
	LocalAddr  string
	RemoteAddr string
}

// LogConnectFailed is an event logged when dial or handshake failed.
type LogConnectFailed struct {
	Error error
}

// LogDisconnected is an event logged when established connection broke.
type LogDisconnected struct {
	Error      error
	LocalAddr  string
	RemoteAddr string
}

// LogReconnecting is an event logged before each reconnection attempt.
type LogReconnecting struct {
	Attempt int
	Error   error
}

// LogReconnected is an event logged when connection were reestablished.
type LogReconnected struct {
	Attempts int
}

// LogFaulted is an event logged when all reconnection attempts failed.
type LogFaulted struct {
	Attempts int
	Error    error
}

// LogContextClosed is an event logged when connector is closed.
type LogContextClosed struct {
	Error error
}

// LogHandlerFailed is an event logged when OnReconnected handler returns error.
type LogHandlerFailed struct {
	Error error
}

func (LogConnecting) logEvent()    {}
func (LogConnected) logEvent()     {}
func (LogConnectFailed) logEvent() {}
func (LogDisconnected) logEvent()  {}
func (LogReconnecting) logEvent()  {}
func (LogReconnected) logEvent()   {}
func (LogFaulted) logEvent()       {}
func (LogContextClosed) logEvent() {}
func (LogHandlerFailed) logEvent() {}

// DefaultLogger is a default Logger implementation
type DefaultLogger struct{}

// Report implements Logger.Report
func (d DefaultLogger) Report(conn *Connector, event LogEvent) {
	switch ev := event.(type) {
	case LogConnecting:
		log.Printf("redisnet: connecting to %s", conn.Addr())
	case LogConnected:
		log.Printf("redisnet: connected to %s (localAddr: %s, remoteAddr: %s)",
			conn.Addr(), ev.LocalAddr, ev.RemoteAddr)
	case LogConnectFailed:
		log.Printf("redisnet: connection to %s failed: %s", conn.Addr(), ev.Error.Error())
	case LogDisconnected:
		log.Printf("redisnet: connection to %s broken (localAddr: %s, remoteAddr: %s): %s",
			conn.Addr(), ev.LocalAddr, ev.RemoteAddr, ev.Error.Error())
	case LogReconnecting:
		log.Printf("redisnet: reconnecting to %s, attempt %d", conn.Addr(), ev.Attempt)
	case LogReconnected:
		log.Printf("redisnet: reconnected to %s after %d attempts", conn.Addr(), ev.Attempts)
	case LogFaulted:
		log.Printf("redisnet: gave up reconnecting to %s after %d attempts: %s",
			conn.Addr(), ev.Attempts, ev.Error.Error())
	case LogContextClosed:
		log.Printf("redisnet: connector to %s explicitly closed: %v", conn.Addr(), ev.Error)
	case LogHandlerFailed:
		log.Printf("redisnet: reconnection handler of %s failed: %s", conn.Addr(), ev.Error.Error())
	default:
		log.Printf("redisnet: unexpected event: %#v", event)
	}
}

// ReqStat implements Logger.ReqStat
func (d DefaultLogger) ReqStat(conn *Connector, req redis.Request, res interface{}, err error, nanos int64) {
	// noop
}

// NoopLogger is a Logger implementation that reports nothing.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(*Connector, LogEvent) {}

// ReqStat implements Logger.ReqStat
func (NoopLogger) ReqStat(*Connector, redis.Request, interface{}, error, int64) {}
