package redisconn

import (
	"github.com/joomcode/redisnet/redis"
)

// Scanner iterates over *SCAN results of single connector.
type Scanner[T any] struct {
	redis.ScanOpts

	c      *Connector
	p      redis.Parser[T]
	cursor string
	done   bool
}

// NewScanner returns scanner for opts, decoding elements with p.
func NewScanner[T any](c *Connector, opts redis.ScanOpts, p redis.Parser[T]) *Scanner[T] {
	return &Scanner[T]{ScanOpts: opts, c: c, p: p}
}

// Next returns next page of elements. ok is false when iteration is finished.
func (s *Scanner[T]) Next() (items []T, ok bool, err error) {
	if s.done {
		return nil, false, nil
	}
	page, err := Do(s.c, redis.ScanCommand(s.ScanOpts, s.cursor, s.p))
	if err != nil {
		return nil, false, err
	}
	s.cursor = page.Cursor
	s.done = page.Last()
	return page.Items, true, nil
}

// Keys returns scanner of key names.
func (c *Connector) Keys(opts redis.ScanOpts) *Scanner[string] {
	return NewScanner[string](c, opts, redis.String)
}
