package redis

// ScanOpts is options for scanning
type ScanOpts struct {
	// Cmd - command to be sent. Could be 'SCAN', 'SSCAN', 'HSCAN', 'ZSCAN'
	// default is 'SCAN'
	Cmd string
	// Key - key for SSCAN, HSCAN and ZSCAN command
	Key string
	// Match - pattern for filtering keys
	Match string
	// Count - soft-limit of single *SCAN answer
	Count int
	// Type - filter by key type (SCAN only)
	Type string
}

// Request returns corresponding request to be send.
// Used mostly internally.
func (s ScanOpts) Request(cursor string) Request {
	if cursor == "" {
		cursor = "0"
	}
	if s.Cmd == "" {
		s.Cmd = "SCAN"
	}
	args := make([]interface{}, 0, 8)
	if s.Cmd != "SCAN" {
		args = append(args, s.Key)
	}
	args = append(args, cursor)
	if s.Match != "" {
		args = append(args, "MATCH", s.Match)
	}
	if s.Count > 0 {
		args = append(args, "COUNT", s.Count)
	}
	if s.Type != "" && s.Cmd == "SCAN" {
		args = append(args, "TYPE", s.Type)
	}
	return Request{s.Cmd, args}
}

// ScanCommand returns scan command for cursor with parser p for elements.
func ScanCommand[T any](s ScanOpts, cursor string, p Parser[T]) Command[ScanResult[T]] {
	return Command[ScanResult[T]]{Req: s.Request(cursor), Parser: Scan(p)}
}

// ScanResult is one page of *SCAN iteration.
type ScanResult[T any] struct {
	Cursor string
	Items  []T
}

// Last reports if iteration is finished.
func (s ScanResult[T]) Last() bool {
	return s.Cursor == "0"
}

// Scan reads *SCAN reply: two element array of cursor (as bulk string) and elements.
func Scan[T any](p Parser[T]) Parser[ScanResult[T]] {
	items := ArrayOf(p)
	return ParserFunc[ScanResult[T]](func(r *Reader) (ScanResult[T], error) {
		var res ScanResult[T]
		if err := r.ExpectArray(2); err != nil {
			return res, err
		}
		cursor, ok, err := r.ReadBulkString()
		if err != nil {
			return res, err
		}
		if !ok {
			return res, r.skipAfter(ErrResponseUnexpected.New("null scan cursor"), 1)
		}
		res.Cursor = cursor
		res.Items, err = items.Parse(r)
		return res, err
	})
}
