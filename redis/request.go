package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

// Req - convenient wrapper to create Request.
func Req(cmd string, args ...interface{}) Request {
	return Request{cmd, args}
}

// Request represents request to be passed to server.
// Cmd may contain two space separated tokens ("CLIENT SETNAME"), each of them becomes
// separate element of request array.
type Request struct {
	Cmd  string
	Args []interface{}
}

func (r Request) String() string {
	args := r.Args
	if len(args) > 5 {
		args = args[:5]
	}
	argss := make([]string, 0, 1+len(args))
	for _, arg := range args {
		argStr := fmt.Sprintf("%v", arg)
		if len(argStr) > 32 {
			argStr = argStr[:32] + "..."
		}
		argss = append(argss, argStr)
	}
	if len(r.Args) > 5 {
		argss = append(argss, "...")
	}
	return fmt.Sprintf("Req(%q, %q)", r.Cmd, argss)
}

// Verb returns first token of command, upper cased.
func (r Request) Verb() string {
	return upperVerb(strings.TrimSpace(r.Cmd))
}

// Request implements Descriptor.
func (r Request) Request() Request {
	return r
}

// Decode implements Descriptor: response is read with Value parser.
func (r Request) Decode(rd *Reader) (interface{}, error) {
	return rd.Read(BulkAsBytes)
}

// Descriptor is a request bound to a parser of its response.
type Descriptor interface {
	Request() Request
	Decode(rd *Reader) (interface{}, error)
}

// Command is a request with typed response parser.
type Command[T any] struct {
	Req    Request
	Parser Parser[T]
}

// NewCommand builds command with parser p.
func NewCommand[T any](p Parser[T], cmd string, args ...interface{}) Command[T] {
	return Command[T]{Req: Request{cmd, args}, Parser: p}
}

// Request implements Descriptor.
func (c Command[T]) Request() Request {
	return c.Req
}

// Decode implements Descriptor.
func (c Command[T]) Decode(rd *Reader) (interface{}, error) {
	return c.Parser.Parse(rd)
}

// As converts result of untyped call into T.
func As[T any](v interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, ErrResponseUnexpected.New("result has type %T, expected %T", v, zero).
			WithProperty(EKResponse, v)
	}
	return t, nil
}

// ArgToString returns string representation of an argument.
// Used to render arguments and in tests.
func ArgToString(arg interface{}) (string, bool) {
	var s string
	switch v := arg.(type) {
	case nil:
		s = ""
	case string:
		s = v
	case []byte:
		s = string(v)
	case int:
		s = strconv.FormatInt(int64(v), 10)
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case int16:
		s = strconv.FormatInt(int64(v), 10)
	case uint16:
		s = strconv.FormatUint(uint64(v), 10)
	case int8:
		s = strconv.FormatInt(int64(v), 10)
	case uint8:
		s = strconv.FormatUint(uint64(v), 10)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			s = "1"
		} else {
			s = "0"
		}
	case time.Duration:
		s = strconv.FormatInt(v.Milliseconds(), 10)
	case fmt.Stringer:
		s = v.String()
	default:
		return "", false
	}
	return s, true
}

// AppendRequest appends request to byte slice as RESP array of bulk strings.
// Length of each bulk is a byte length of the element in encoding enc (nil means UTF-8);
// []byte arguments are written as is.
func AppendRequest(buf []byte, enc encoding.Encoding, req Request) ([]byte, error) {
	oldSize := len(buf)
	cmd := strings.TrimSpace(req.Cmd)
	if cmd == "" {
		return buf, ErrNoVerb.New("request has no command").WithProperty(EKRequest, req)
	}
	verb, sub := cmd, ""
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		verb, sub = cmd[:i], strings.TrimSpace(cmd[i+1:])
	}
	n := len(req.Args) + 1
	if sub != "" {
		n++
	}
	buf = appendHead(buf, '*', int64(n))
	var err error
	if buf, err = appendBulkString(buf, enc, verb); err != nil {
		return buf[:oldSize], ErrArgumentType.Wrap(err, "command encoding").WithProperty(EKRequest, req)
	}
	if sub != "" {
		if buf, err = appendBulkString(buf, enc, sub); err != nil {
			return buf[:oldSize], ErrArgumentType.Wrap(err, "command encoding").WithProperty(EKRequest, req)
		}
	}
	for i, arg := range req.Args {
		if b, ok := arg.([]byte); ok {
			buf = appendHead(buf, '$', int64(len(b)))
			buf = append(buf, b...)
			buf = append(buf, '\r', '\n')
			continue
		}
		s, ok := ArgToString(arg)
		if !ok {
			return buf[:oldSize], ErrArgumentType.New("command argument type not supported").
				WithProperty(EKVal, arg).
				WithProperty(EKArgPos, i).
				WithProperty(EKRequest, req)
		}
		if buf, err = appendBulkString(buf, enc, s); err != nil {
			return buf[:oldSize], ErrArgumentType.Wrap(err, "argument encoding").
				WithProperty(EKArgPos, i).
				WithProperty(EKRequest, req)
		}
	}
	return buf, nil
}

func appendBulkString(buf []byte, enc encoding.Encoding, s string) ([]byte, error) {
	if enc == nil {
		buf = appendHead(buf, '$', int64(len(s)))
		buf = append(buf, s...)
		return append(buf, '\r', '\n'), nil
	}
	b, err := appendEncoded(nil, enc, s)
	if err != nil {
		return buf, err
	}
	buf = appendHead(buf, '$', int64(len(b)))
	buf = append(buf, b...)
	return append(buf, '\r', '\n'), nil
}

func appendHead(b []byte, t byte, i int64) []byte {
	b = append(b, t)
	b = strconv.AppendInt(b, i, 10)
	return append(b, '\r', '\n')
}
