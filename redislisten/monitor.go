package redislisten

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

// Monitor listens to MONITOR feed.
// Every frame is passed to handlers as is, usually it is a status line.
type Monitor struct {
	l *Listener[interface{}]

	hmu     sync.Mutex
	onEntry []func(entry interface{})
}

// NewMonitor creates monitor on conn.
// conn becomes useless for other requests after Start.
func NewMonitor(conn *redisconn.Connector) *Monitor {
	return &Monitor{l: NewListener[interface{}](conn)}
}

// OnEntry registers handler of feed entries.
// Handlers are called synchronously from Start.
func (m *Monitor) OnEntry(h func(entry interface{})) {
	m.hmu.Lock()
	m.onEntry = append(m.onEntry, h)
	m.hmu.Unlock()
}

// Start issues MONITOR and reads feed until connector disconnects.
// It returns MONITOR's status reply.
func (m *Monitor) Start() (string, error) {
	conn := m.l.Conn()
	if err := conn.Stream(redis.Req("MONITOR")); err != nil {
		return "", err
	}
	status, err := redisconn.ReadNext[string](conn, redis.Status)
	if err != nil {
		if redis.StreamBroken(err) {
			conn.Abort(err)
		}
		return "", err
	}
	return status, m.l.Listen(redis.Value(redis.BulkAsString), m.dispatch, conn.IsConnected)
}

// Listening reports if feed is being read.
func (m *Monitor) Listening() bool {
	return m.l.Listening()
}

func (m *Monitor) dispatch(entry interface{}) {
	m.hmu.Lock()
	handlers := m.onEntry
	m.hmu.Unlock()
	for _, h := range handlers {
		h(entry)
	}
}

// Entry is a parsed MONITOR line.
type Entry struct {
	Time   time.Time
	DB     int
	Client string
	Args   []string
}

// ParseEntry parses MONITOR line like
//
//	1700000000.123456 [0 127.0.0.1:50000] "SET" "key" "value"
func ParseEntry(line string) (Entry, error) {
	var e Entry
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return e, redis.ErrResponseUnexpected.New("monitor line without timestamp: %q", line)
	}
	sec, usec, _ := strings.Cut(line[:sp], ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return e, redis.ErrResponseUnexpected.Wrap(err, "monitor timestamp %q", line[:sp])
	}
	us, _ := strconv.ParseInt(usec, 10, 64)
	e.Time = time.Unix(s, us*1000)

	rest := line[sp+1:]
	if !strings.HasPrefix(rest, "[") {
		return e, redis.ErrResponseUnexpected.New("monitor line without client: %q", line)
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return e, redis.ErrResponseUnexpected.New("monitor line without client: %q", line)
	}
	db, client, _ := strings.Cut(rest[1:end], " ")
	if e.DB, err = strconv.Atoi(db); err != nil {
		return e, redis.ErrResponseUnexpected.Wrap(err, "monitor db %q", db)
	}
	e.Client = client

	rest = strings.TrimSpace(rest[end+1:])
	for rest != "" {
		q, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return e, redis.ErrResponseUnexpected.Wrap(err, "monitor argument in %q", line)
		}
		arg, err := strconv.Unquote(q)
		if err != nil {
			return e, redis.ErrResponseUnexpected.Wrap(err, "monitor argument %s", q)
		}
		e.Args = append(e.Args, arg)
		rest = strings.TrimSpace(rest[len(q):])
	}
	return e, nil
}
