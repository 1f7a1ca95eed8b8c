package redis

import (
	"bufio"
	"errors"
	"io"

	"github.com/joomcode/errorx"
	"golang.org/x/text/encoding"
)

// Kind is a RESP type tag.
type Kind byte

const (
	KindStatus Kind = '+'
	KindError  Kind = '-'
	KindInt    Kind = ':'
	KindBulk   Kind = '$'
	KindArray  Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindInt:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	}
	return "unknown(" + string(rune(k)) + ")"
}

// BulkMode selects how bulk strings are materialized by Read.
type BulkMode int

const (
	// BulkAsBytes returns bulk strings as []byte.
	BulkAsBytes BulkMode = iota
	// BulkAsString returns bulk strings as string decoded with reader's encoding.
	BulkAsString
)

// MaxLineLength limits length of status, error and header lines.
const MaxLineLength = 64 * 1024

// MaxSize limits declared length of bulk string and element count of array,
// same as server's default proto-max-bulk-len.
const MaxSize = 512 * 1024 * 1024

// prealloc bounds capacity allocated ahead of elements actually read.
const prealloc = 1024

// Reader decodes RESP frames from a byte stream.
// It is not safe for concurrent use.
type Reader struct {
	b    *bufio.Reader
	enc  encoding.Encoding
	line []byte
}

// NewReader returns reader over rd. enc is used to decode bulk strings into text,
// nil means UTF-8.
func NewReader(rd io.Reader, enc encoding.Encoding) *Reader {
	b, ok := rd.(*bufio.Reader)
	if !ok {
		b = bufio.NewReaderSize(rd, 16*1024)
	}
	return &Reader{b: b, enc: enc}
}

// Encoding returns text encoding of reader.
func (r *Reader) Encoding() encoding.Encoding {
	return r.enc
}

// Buffered returns number of bytes already read from underlying stream but not decoded yet.
func (r *Reader) Buffered() int {
	return r.b.Buffered()
}

// ReadType reads type tag of next frame.
// Error frame is consumed completely and returned as ErrResult error.
func (r *Reader) ReadType() (Kind, error) {
	c, err := r.b.ReadByte()
	if err != nil {
		return 0, r.ioErr(err)
	}
	switch k := Kind(c); k {
	case KindStatus, KindInt, KindBulk, KindArray:
		return k, nil
	case KindError:
		line, err := r.readLine()
		if err != nil {
			return 0, err
		}
		return KindError, NewResultError(string(line))
	default:
		return 0, ErrUnknownHeaderType.New("header type %q is not known", c)
	}
}

// ExpectType reads type tag and checks it is k.
func (r *Reader) ExpectType(k Kind) error {
	actual, err := r.ReadType()
	if err != nil {
		return err
	}
	if actual != k {
		return r.unexpected(k, actual)
	}
	return nil
}

// ReadSize reads length line following bulk or array tag.
// -1 means null.
func (r *Reader) ReadSize() (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}
	n, err := parseInt(line)
	if err != nil {
		return 0, err
	}
	if n < -1 {
		return 0, ErrIntegerParsing.New("negative length").WithProperty(EKLine, string(line))
	}
	if n > MaxSize {
		return 0, ErrUnexpectedSize.New("declared length %d exceeds %d", n, MaxSize).
			WithProperty(EKActual, n)
	}
	return n, nil
}

// ExpectSize reads length line following bulk or array tag, and checks it is expected.
func (r *Reader) ExpectSize(expected int64) error {
	actual, err := r.ReadSize()
	if err != nil {
		return err
	}
	return checkSize(expected, actual)
}

func checkSize(expected, actual int64) error {
	if expected != actual {
		return ErrUnexpectedSize.New("expected %d elements, got %d", expected, actual).
			WithProperty(EKExpected, expected).
			WithProperty(EKActual, actual)
	}
	return nil
}

// ExpectArray reads array header and checks it contains exactly n elements.
func (r *Reader) ExpectArray(n int64) error {
	if err := r.ExpectType(KindArray); err != nil {
		return err
	}
	return r.ExpectSize(n)
}

// ReadArrayLen reads array header. -1 means null array.
func (r *Reader) ReadArrayLen() (int64, error) {
	if err := r.ExpectType(KindArray); err != nil {
		return 0, err
	}
	return r.ReadSize()
}

// ReadStatus reads status frame.
func (r *Reader) ReadStatus() (string, error) {
	if err := r.ExpectType(KindStatus); err != nil {
		return "", err
	}
	line, err := r.readLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// ReadInt reads integer frame.
func (r *Reader) ReadInt() (int64, error) {
	if err := r.ExpectType(KindInt); err != nil {
		return 0, err
	}
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}
	return parseInt(line)
}

// ReadBulk reads bulk frame into new buffer.
// Null bulk is returned as nil, empty bulk as empty non-nil slice.
func (r *Reader) ReadBulk() ([]byte, error) {
	if err := r.ExpectType(KindBulk); err != nil {
		return nil, err
	}
	return r.readBulkBody()
}

// ReadBulkString reads bulk frame as text. ok is false for null bulk.
func (r *Reader) ReadBulkString() (s string, ok bool, err error) {
	b, err := r.ReadBulk()
	if err != nil || b == nil {
		return "", false, err
	}
	s, err = decodeString(r.enc, b)
	return s, err == nil, err
}

// ReadBulkTo streams bulk frame into w in chunks of at most chunk bytes.
// It returns payload length, or -1 for null bulk.
// Whole payload is consumed from the stream even if w fails.
func (r *Reader) ReadBulkTo(w io.Writer, chunk int) (int64, error) {
	if err := r.ExpectType(KindBulk); err != nil {
		return 0, err
	}
	n, err := r.ReadSize()
	if err != nil || n < 0 {
		return n, err
	}
	if chunk <= 0 {
		chunk = 4096
	}
	buf := make([]byte, min(int64(chunk), max(n, 1)))
	var werr error
	for left := n; left > 0; {
		m := min(left, int64(len(buf)))
		if _, err = io.ReadFull(r.b, buf[:m]); err != nil {
			return 0, r.ioErr(err)
		}
		if werr == nil {
			_, werr = w.Write(buf[:m])
		}
		left -= m
	}
	if err = r.readCRLF(); err != nil {
		return 0, err
	}
	return n, werr
}

// Read reads one complete frame.
// Status is returned as string, integer as int64, bulk as []byte or string (depending on mode),
// array as []interface{}, null bulk and null array as nil.
// Top-level error frame is returned as error; errors nested in arrays are returned
// as *errorx.Error elements, so the whole array is consumed.
func (r *Reader) Read(mode BulkMode) (interface{}, error) {
	k, err := r.ReadType()
	if err != nil {
		return nil, err
	}
	return r.ReadValue(k, mode)
}

// ReadValue reads frame body after tag k were read with ReadType.
func (r *Reader) ReadValue(k Kind, mode BulkMode) (interface{}, error) {
	switch k {
	case KindStatus:
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		return string(line), nil
	case KindInt:
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		return parseInt(line)
	case KindBulk:
		b, err := r.readBulkBody()
		if err != nil || b == nil {
			return nil, err
		}
		if mode == BulkAsString {
			return decodeString(r.enc, b)
		}
		return b, nil
	case KindArray:
		n, err := r.ReadSize()
		if err != nil || n < 0 {
			return nil, err
		}
		res, err := r.readArrayBody(n, mode)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, ErrUnknownHeaderType.New("header type %q is not known", byte(k))
}

func (r *Reader) readArrayBody(n int64, mode BulkMode) ([]interface{}, error) {
	res := make([]interface{}, 0, min(n, prealloc))
	for i := int64(0); i < n; i++ {
		v, err := r.Read(mode)
		if err != nil {
			if HardError(err) {
				return nil, err
			}
			v = err
		}
		res = append(res, v)
	}
	return res, nil
}

// Frame is a generic decoded RESP frame.
type Frame struct {
	Kind Kind
	// Str holds status or error text.
	Str   string
	Int   int64
	Bulk  []byte
	Array []Frame
	// Null is set for null bulk and null array.
	Null bool
}

// ReadFrame reads one frame without interpretation.
// Error frame is returned as frame of KindError, not as error.
func (r *Reader) ReadFrame() (Frame, error) {
	k, err := r.ReadType()
	if k == KindError {
		return Frame{Kind: KindError, Str: errorx.Cast(err).Message()}, nil
	}
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Kind: k}
	switch k {
	case KindStatus:
		line, err := r.readLine()
		if err != nil {
			return f, err
		}
		f.Str = string(line)
	case KindInt:
		line, err := r.readLine()
		if err != nil {
			return f, err
		}
		f.Int, err = parseInt(line)
		return f, err
	case KindBulk:
		f.Bulk, err = r.readBulkBody()
		f.Null = err == nil && f.Bulk == nil
		return f, err
	case KindArray:
		n, err := r.ReadSize()
		if err != nil {
			return f, err
		}
		if n < 0 {
			f.Null = true
			return f, nil
		}
		f.Array = make([]Frame, 0, min(n, prealloc))
		for i := int64(0); i < n; i++ {
			el, err := r.ReadFrame()
			if err != nil {
				return f, err
			}
			f.Array = append(f.Array, el)
		}
	}
	return f, nil
}

func (r *Reader) readBulkBody() ([]byte, error) {
	n, err := r.ReadSize()
	if err != nil || n < 0 {
		return nil, err
	}
	buf := make([]byte, n+2)
	if _, err = io.ReadFull(r.b, buf); err != nil {
		return nil, r.ioErr(err)
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, ErrNoFinalRN.NewWithNoMessage()
	}
	return buf[:n:n], nil
}

func (r *Reader) readCRLF() error {
	var rn [2]byte
	if _, err := io.ReadFull(r.b, rn[:]); err != nil {
		return r.ioErr(err)
	}
	if rn[0] != '\r' || rn[1] != '\n' {
		return ErrNoFinalRN.NewWithNoMessage()
	}
	return nil
}

// readLine reads bytes up to CR immediately followed by LF.
// Lone CR or LF is part of the line. Result is valid until next read.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		chunk, err := r.b.ReadSlice('\n')
		if len(r.line)+len(chunk) > MaxLineLength+2 {
			return nil, ErrHeaderlineTooLarge.NewWithNoMessage().
				WithProperty(EKLine, string(r.line[:min(len(r.line), 32)]))
		}
		r.line = append(r.line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return nil, r.ioErr(err)
		}
		if n := len(r.line); n >= 2 && r.line[n-2] == '\r' {
			return r.line[:n-2], nil
		}
	}
}

func (r *Reader) ioErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated.Wrap(err, "end of stream inside frame")
	}
	return WrapIO(err)
}

func parseInt(buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, ErrIntegerParsing.New("empty integer")
	}

	orig := buf
	neg := buf[0] == '-'
	if neg {
		buf = buf[1:]
		if len(buf) == 0 {
			return 0, ErrIntegerParsing.NewWithNoMessage().WithProperty(EKLine, string(orig))
		}
	}
	v := uint64(0)
	for _, b := range buf {
		if b < '0' || b > '9' {
			return 0, ErrIntegerParsing.NewWithNoMessage().WithProperty(EKLine, string(orig))
		}
		if v > (1<<63)/10 {
			return 0, ErrIntegerParsing.New("integer overflow").WithProperty(EKLine, string(orig))
		}
		v = v*10 + uint64(b-'0')
		if v > 1<<63 {
			return 0, ErrIntegerParsing.New("integer overflow").WithProperty(EKLine, string(orig))
		}
	}
	if neg {
		return -int64(v), nil
	}
	if v > 1<<63-1 {
		return 0, ErrIntegerParsing.New("integer overflow").WithProperty(EKLine, string(orig))
	}
	return int64(v), nil
}
