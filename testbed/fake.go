package testbed

import (
	"fmt"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joomcode/redisnet/redis"
)

// Handler may intercept request before Fake handles it.
// It returns reply bytes (possibly nil) and true if request is handled.
type Handler func(c *FakeConn, req []string) ([]byte, bool)

// Fake is an in-process redis imitation listening on loopback.
// It keeps strings in memory and understands small set of commands:
// PING, ECHO, AUTH, SELECT, CLIENT SETNAME, QUIT, GET, SET, DEL, EXISTS, INCR,
// DEBUG SLEEP, BLPOP (always times out), SCAN, (P)SUBSCRIBE, (P)UNSUBSCRIBE, PUBLISH, MONITOR.
// Every request is recorded.
type Fake struct {
	mu       sync.Mutex
	password string
	handler  Handler
	ln       net.Listener
	addr     string
	conns    map[*FakeConn]struct{}
	data     map[string]string
	requests [][]string
	wg       sync.WaitGroup
}

// FakeConn is server side of client connection to Fake.
type FakeConn struct {
	f  *Fake
	c  net.Conn
	wm sync.Mutex

	authed   bool
	monitor  bool
	channels map[string]bool
	patterns map[string]bool
}

// NewFake starts fake on random loopback port.
func NewFake() (*Fake, error) {
	f := &Fake{data: map[string]string{}}
	if err := f.Start(); err != nil {
		return nil, err
	}
	return f, nil
}

// Start starts listening. After Stop, fake listens on same address again.
func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ln != nil {
		return nil
	}
	addr := f.addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	f.ln = ln
	f.addr = ln.Addr().String()
	if f.conns == nil {
		f.conns = map[*FakeConn]struct{}{}
	}
	f.wg.Add(1)
	go f.accept(ln)
	return nil
}

// SetPassword makes AUTH required for new connections.
func (f *Fake) SetPassword(password string) {
	f.mu.Lock()
	f.password = password
	f.mu.Unlock()
}

// SetHandler sets handler consulted before builtin commands.
func (f *Fake) SetHandler(h Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Addr returns listening address.
func (f *Fake) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}

// Stop closes listener and all connections.
func (f *Fake) Stop() {
	f.mu.Lock()
	ln := f.ln
	f.ln = nil
	f.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	f.DropConnections()
	f.wg.Wait()
}

// DropConnections closes all client connections, but keeps listening.
func (f *Fake) DropConnections() {
	f.mu.Lock()
	conns := make([]*FakeConn, 0, len(f.conns))
	for c := range f.conns {
		conns = append(conns, c)
	}
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Clients returns number of connected clients.
func (f *Fake) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Requests returns copy of recorded requests.
func (f *Fake) Requests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([][]string, len(f.requests))
	copy(res, f.requests)
	return res
}

// Count returns number of recorded requests with command cmd.
func (f *Fake) Count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.EqualFold(req[0], cmd) {
			n++
		}
	}
	return n
}

// Set stores value.
func (f *Fake) Set(key, value string) {
	f.mu.Lock()
	f.data[key] = value
	f.mu.Unlock()
}

// Get returns stored value.
func (f *Fake) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

// Publish sends message to subscribers and returns their number.
func (f *Fake) Publish(channel, message string) int {
	f.mu.Lock()
	conns := make([]*FakeConn, 0, len(f.conns))
	for c := range f.conns {
		conns = append(conns, c)
	}
	f.mu.Unlock()
	n := 0
	for _, c := range conns {
		c.wm.Lock()
		var out []byte
		if c.channels[channel] {
			out = AppendArray(out, "message", channel, message)
			n++
		}
		for p := range c.patterns {
			if ok, _ := path.Match(p, channel); ok {
				out = AppendArray(out, "pmessage", p, channel, message)
				n++
			}
		}
		if len(out) > 0 {
			c.c.Write(out)
		}
		c.wm.Unlock()
	}
	return n
}

func (f *Fake) accept(ln net.Listener) {
	defer f.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		c := &FakeConn{f: f, c: nc, channels: map[string]bool{}, patterns: map[string]bool{}}
		f.mu.Lock()
		f.conns[c] = struct{}{}
		f.mu.Unlock()
		f.wg.Add(1)
		go f.serve(c)
	}
}

func (f *Fake) serve(c *FakeConn) {
	defer f.wg.Done()
	defer c.Close()
	r := redis.NewReader(c.c, nil)
	for {
		v, err := r.Read(redis.BulkAsString)
		if err != nil {
			return
		}
		arr, ok := v.([]interface{})
		if !ok || len(arr) == 0 {
			c.Write(AppendError(nil, "ERR Protocol error: expected array of bulk strings"))
			continue
		}
		req := make([]string, len(arr))
		for i, a := range arr {
			req[i], _ = a.(string)
		}
		handler := f.record(c, req)
		if handler != nil {
			if reply, ok := handler(c, req); ok {
				if reply != nil {
					c.Write(reply)
				}
				continue
			}
		}
		reply, quit := f.handle(c, req)
		if reply != nil {
			c.Write(reply)
		}
		if quit {
			return
		}
	}
}

// record stores request and feeds monitors; it returns current handler.
func (f *Fake) record(c *FakeConn, req []string) Handler {
	f.mu.Lock()
	handler := f.handler
	f.requests = append(f.requests, req)
	var monitors []*FakeConn
	for m := range f.conns {
		if m.monitor && m != c {
			monitors = append(monitors, m)
		}
	}
	f.mu.Unlock()
	if len(monitors) == 0 {
		return handler
	}
	now := time.Now()
	line := fmt.Sprintf("%d.%06d [0 %s]", now.Unix(), now.Nanosecond()/1000, c.c.RemoteAddr())
	for _, a := range req {
		line += " " + strconv.Quote(a)
	}
	for _, m := range monitors {
		m.Write(AppendStatus(nil, line))
	}
	return handler
}

func (f *Fake) handle(c *FakeConn, req []string) (reply []byte, quit bool) {
	cmd := strings.ToUpper(req[0])
	args := req[1:]
	f.mu.Lock()
	password := f.password
	f.mu.Unlock()
	if password != "" && !c.authed && cmd != "AUTH" {
		return AppendError(nil, "NOAUTH Authentication required."), false
	}
	if c.subscribed() {
		switch cmd {
		case "SUBSCRIBE", "PSUBSCRIBE", "UNSUBSCRIBE", "PUNSUBSCRIBE", "PING", "QUIT":
		default:
			return AppendError(nil, fmt.Sprintf("ERR Can't execute '%s': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT are allowed in this context", strings.ToLower(cmd))), false
		}
	}
	switch cmd {
	case "PING":
		if c.subscribed() {
			msg := ""
			if len(args) > 0 {
				msg = args[0]
			}
			return AppendArray(nil, "pong", msg), false
		}
		if len(args) > 0 {
			return AppendBulk(nil, args[0]), false
		}
		return AppendStatus(nil, "PONG"), false
	case "QUIT":
		return AppendStatus(nil, "OK"), true
	case "AUTH":
		if password == "" {
			return AppendError(nil, "ERR AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?"), false
		}
		if len(args) == 0 || args[len(args)-1] != password {
			return AppendError(nil, "WRONGPASS invalid username-password pair or user is disabled."), false
		}
		c.authed = true
		return AppendStatus(nil, "OK"), false
	case "SELECT":
		if len(args) != 1 {
			return wrongArgs(cmd), false
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return AppendError(nil, "ERR value is not an integer or out of range"), false
		}
		return AppendStatus(nil, "OK"), false
	case "CLIENT":
		if len(args) >= 1 && strings.EqualFold(args[0], "SETNAME") {
			return AppendStatus(nil, "OK"), false
		}
		return AppendError(nil, "ERR unknown subcommand"), false
	case "ECHO":
		if len(args) != 1 {
			return wrongArgs(cmd), false
		}
		return AppendBulk(nil, args[0]), false
	case "SET":
		if len(args) < 2 {
			return wrongArgs(cmd), false
		}
		f.Set(args[0], args[1])
		return AppendStatus(nil, "OK"), false
	case "GET":
		if len(args) != 1 {
			return wrongArgs(cmd), false
		}
		if v, ok := f.Get(args[0]); ok {
			return AppendBulk(nil, v), false
		}
		return AppendNull(nil), false
	case "DEL", "EXISTS":
		n := 0
		f.mu.Lock()
		for _, k := range args {
			if _, ok := f.data[k]; ok {
				n++
				if cmd == "DEL" {
					delete(f.data, k)
				}
			}
		}
		f.mu.Unlock()
		return AppendInt(nil, int64(n)), false
	case "INCR":
		if len(args) != 1 {
			return wrongArgs(cmd), false
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		v, err := strconv.ParseInt(f.data[args[0]], 10, 64)
		if err != nil && f.data[args[0]] != "" {
			return AppendError(nil, "ERR value is not an integer or out of range"), false
		}
		v++
		f.data[args[0]] = strconv.FormatInt(v, 10)
		return AppendInt(nil, v), false
	case "DEBUG":
		if len(args) == 2 && strings.EqualFold(args[0], "SLEEP") {
			sec, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return AppendError(nil, "ERR value is not a valid float"), false
			}
			time.Sleep(time.Duration(sec * float64(time.Second)))
			return AppendStatus(nil, "OK"), false
		}
		return AppendError(nil, "ERR unknown subcommand"), false
	case "BLPOP":
		if len(args) < 2 {
			return wrongArgs(cmd), false
		}
		sec, err := strconv.ParseFloat(args[len(args)-1], 64)
		if err != nil {
			return AppendError(nil, "ERR timeout is not a float or out of range"), false
		}
		time.Sleep(time.Duration(sec * float64(time.Second)))
		return []byte("*-1\r\n"), false
	case "SCAN":
		return f.scan(args), false
	case "SUBSCRIBE", "PSUBSCRIBE":
		if len(args) == 0 {
			return wrongArgs(cmd), false
		}
		var out []byte
		c.wm.Lock()
		set := c.channels
		if cmd == "PSUBSCRIBE" {
			set = c.patterns
		}
		for _, ch := range args {
			set[ch] = true
			out = appendSubscription(out, strings.ToLower(cmd), ch, len(c.channels)+len(c.patterns))
		}
		c.wm.Unlock()
		return out, false
	case "UNSUBSCRIBE", "PUNSUBSCRIBE":
		var out []byte
		c.wm.Lock()
		set := c.channels
		if cmd == "PUNSUBSCRIBE" {
			set = c.patterns
		}
		names := args
		if len(names) == 0 {
			for ch := range set {
				names = append(names, ch)
			}
		}
		if len(names) == 0 {
			out = AppendArrayHead(out, 3)
			out = AppendBulk(out, strings.ToLower(cmd))
			out = AppendNull(out)
			out = AppendInt(out, int64(len(c.channels)+len(c.patterns)))
		}
		for _, ch := range names {
			delete(set, ch)
			out = appendSubscription(out, strings.ToLower(cmd), ch, len(c.channels)+len(c.patterns))
		}
		c.wm.Unlock()
		return out, false
	case "PUBLISH":
		if len(args) != 2 {
			return wrongArgs(cmd), false
		}
		return AppendInt(nil, int64(f.Publish(args[0], args[1]))), false
	case "MONITOR":
		f.mu.Lock()
		c.monitor = true
		f.mu.Unlock()
		return AppendStatus(nil, "OK"), false
	}
	return AppendError(nil, fmt.Sprintf("ERR unknown command '%s'", req[0])), false
}

func (f *Fake) scan(args []string) []byte {
	if len(args) == 0 {
		return wrongArgs("SCAN")
	}
	cursor, err := strconv.Atoi(args[0])
	if err != nil {
		return AppendError(nil, "ERR invalid cursor")
	}
	match, count := "*", 10
	for i := 1; i+1 < len(args); i += 2 {
		switch strings.ToUpper(args[i]) {
		case "MATCH":
			match = args[i+1]
		case "COUNT":
			count, _ = strconv.Atoi(args[i+1])
		}
	}
	f.mu.Lock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	f.mu.Unlock()
	sort.Strings(keys)
	end := cursor + count
	next := strconv.Itoa(end)
	if end >= len(keys) {
		end = len(keys)
		next = "0"
	}
	var page []string
	if cursor < len(keys) {
		for _, k := range keys[cursor:end] {
			if ok, _ := path.Match(match, k); ok {
				page = append(page, k)
			}
		}
	}
	out := AppendArrayHead(nil, 2)
	out = AppendBulk(out, next)
	return AppendArray(out, page...)
}

func wrongArgs(cmd string) []byte {
	return AppendError(nil, fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd)))
}

func appendSubscription(b []byte, kind, name string, count int) []byte {
	b = AppendArrayHead(b, 3)
	b = AppendBulk(b, kind)
	b = AppendBulk(b, name)
	return AppendInt(b, int64(count))
}

func (c *FakeConn) subscribed() bool {
	c.wm.Lock()
	defer c.wm.Unlock()
	return len(c.channels)+len(c.patterns) > 0
}

// Write writes raw bytes to client.
func (c *FakeConn) Write(b []byte) error {
	c.wm.Lock()
	defer c.wm.Unlock()
	_, err := c.c.Write(b)
	return err
}

// Close closes connection.
func (c *FakeConn) Close() error {
	c.f.mu.Lock()
	delete(c.f.conns, c)
	c.f.mu.Unlock()
	return c.c.Close()
}

// RemoteAddr returns client address.
func (c *FakeConn) RemoteAddr() string {
	return c.c.RemoteAddr().String()
}

// AppendStatus appends status reply.
func AppendStatus(b []byte, s string) []byte {
	b = append(b, '+')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// AppendError appends error reply.
func AppendError(b []byte, s string) []byte {
	b = append(b, '-')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// AppendInt appends integer reply.
func AppendInt(b []byte, i int64) []byte {
	b = append(b, ':')
	b = strconv.AppendInt(b, i, 10)
	return append(b, '\r', '\n')
}

// AppendBulk appends bulk string.
func AppendBulk(b []byte, s string) []byte {
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, '\r', '\n')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// AppendNull appends null bulk.
func AppendNull(b []byte) []byte {
	return append(b, "$-1\r\n"...)
}

// AppendArrayHead appends array header.
func AppendArrayHead(b []byte, n int) []byte {
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, '\r', '\n')
}

// AppendArray appends array of bulk strings.
func AppendArray(b []byte, items ...string) []byte {
	b = AppendArrayHead(b, len(items))
	for _, s := range items {
		b = AppendBulk(b, s)
	}
	return b
}
