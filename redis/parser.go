package redis

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Parser decodes response of a particular shape.
// Parser reads exactly one frame from the reader.
type Parser[T any] interface {
	Parse(r *Reader) (T, error)
}

// ParserFunc adapts function to Parser.
type ParserFunc[T any] func(r *Reader) (T, error)

// Parse implements Parser.
func (f ParserFunc[T]) Parse(r *Reader) (T, error) {
	return f(r)
}

// Nullable holds value that could be absent in response.
type Nullable[T any] struct {
	Value T
	Valid bool
}

// Tuple is a pair of consecutive elements of flat array response.
type Tuple[A, B any] struct {
	First  A
	Second B
}

var (
	// Status reads status reply.
	Status ParserFunc[string] = (*Reader).ReadStatus
	// NullStatus reads status reply or null bulk (SET ... NX).
	NullStatus ParserFunc[Nullable[string]] = parseNullStatus
	// OK expects "+OK" status.
	OK ParserFunc[struct{}] = parseOK
	// Int reads integer reply.
	Int ParserFunc[int64] = (*Reader).ReadInt
	// NullInt reads integer reply or null bulk.
	NullInt ParserFunc[Nullable[int64]] = parseNullInt
	// Bool reads integer reply and reports if it equals 1.
	Bool ParserFunc[bool] = parseBool
	// Float reads bulk string with floating point number.
	Float ParserFunc[float64] = parseFloat
	// NullFloat reads bulk string with floating point number, or null bulk.
	NullFloat ParserFunc[Nullable[float64]] = parseNullFloat
	// String reads bulk string as text. Null bulk gives empty string.
	String ParserFunc[string] = parseString
	// NullString reads bulk string as text, distinguishing null bulk.
	NullString ParserFunc[Nullable[string]] = parseNullString
	// IntString reads bulk string containing integer (GET of counter).
	IntString ParserFunc[Nullable[int64]] = parseIntString
	// Bytes reads bulk string as bytes. Null bulk gives nil, empty bulk gives empty slice.
	Bytes ParserFunc[[]byte] = (*Reader).ReadBulk
	// Strings reads array of bulk strings.
	Strings ParserFunc[[]string] = ArrayOf[string](String).Parse
	// Hash reads flat array of field-value pairs into map.
	Hash ParserFunc[map[string]string] = parseHash
	// Date reads integer unix time in seconds (LASTSAVE).
	Date ParserFunc[time.Time] = parseDate
	// MicroDate reads pair of seconds and microseconds (TIME).
	MicroDate ParserFunc[time.Time] = parseMicroDate
)

// Value reads arbitrary frame using BulkMode mode.
func Value(mode BulkMode) Parser[interface{}] {
	return ParserFunc[interface{}](func(r *Reader) (interface{}, error) {
		return r.Read(mode)
	})
}

// Array reads array of arbitrary frames.
func Array(mode BulkMode) Parser[[]interface{}] {
	return ParserFunc[[]interface{}](func(r *Reader) ([]interface{}, error) {
		n, err := r.ReadArrayLen()
		if err != nil || n < 0 {
			return nil, err
		}
		return r.readArrayBody(n, mode)
	})
}

// ArrayOf reads array, decoding every element with p.
// Null array gives nil slice.
func ArrayOf[T any](p Parser[T]) Parser[[]T] {
	return ParserFunc[[]T](func(r *Reader) ([]T, error) {
		n, err := r.ReadArrayLen()
		if err != nil || n < 0 {
			return nil, err
		}
		res := make([]T, 0, min(n, prealloc))
		for i := int64(0); i < n; i++ {
			v, err := p.Parse(r)
			if err != nil {
				return nil, r.skipAfter(err, n-i-1)
			}
			res = append(res, v)
		}
		return res, nil
	})
}

// Tuples reads flat array of even length as pairs.
func Tuples[A, B any](pa Parser[A], pb Parser[B]) Parser[[]Tuple[A, B]] {
	return ParserFunc[[]Tuple[A, B]](func(r *Reader) ([]Tuple[A, B], error) {
		n, err := r.ReadArrayLen()
		if err != nil || n < 0 {
			return nil, err
		}
		if n%2 != 0 {
			if serr := r.skipN(n); serr != nil {
				return nil, serr
			}
			return nil, ErrUnexpectedSize.New("odd number of elements %d for tuples", n).
				WithProperty(EKActual, n)
		}
		res := make([]Tuple[A, B], 0, min(n/2, prealloc))
		for i := int64(0); i < n; i += 2 {
			var t Tuple[A, B]
			if t.First, err = pa.Parse(r); err != nil {
				return nil, r.skipAfter(err, n-i-1)
			}
			if t.Second, err = pb.Parse(r); err != nil {
				return nil, r.skipAfter(err, n-i-2)
			}
			res = append(res, t)
		}
		return res, nil
	})
}

// skipAfter skips rest of array after element error, so stream stays in sync.
func (r *Reader) skipAfter(err error, rest int64) error {
	if StreamBroken(err) {
		return err
	}
	if serr := r.skipN(rest); serr != nil {
		return serr
	}
	return err
}

func (r *Reader) skipN(n int64) error {
	for ; n > 0; n-- {
		if _, err := r.Read(BulkAsBytes); StreamBroken(err) {
			return err
		}
	}
	return nil
}

func parseNullStatus(r *Reader) (Nullable[string], error) {
	k, err := r.ReadType()
	if err != nil {
		return Nullable[string]{}, err
	}
	switch k {
	case KindStatus:
		s, err := r.ReadValue(k, BulkAsString)
		if err != nil {
			return Nullable[string]{}, err
		}
		return Nullable[string]{Value: s.(string), Valid: true}, nil
	case KindBulk:
		b, err := r.readBulkBody()
		if err != nil || b == nil {
			return Nullable[string]{}, err
		}
		s, err := decodeString(r.enc, b)
		return Nullable[string]{Value: s, Valid: err == nil}, err
	}
	return Nullable[string]{}, r.unexpected(KindStatus, k)
}

func parseOK(r *Reader) (struct{}, error) {
	s, err := r.ReadStatus()
	if err != nil {
		return struct{}{}, err
	}
	if s != "OK" {
		return struct{}{}, ErrResponseUnexpected.New("expected OK, got %q", s).WithProperty(EKResponse, s)
	}
	return struct{}{}, nil
}

func parseNullInt(r *Reader) (Nullable[int64], error) {
	k, err := r.ReadType()
	if err != nil {
		return Nullable[int64]{}, err
	}
	switch k {
	case KindInt:
		v, err := r.ReadValue(k, BulkAsBytes)
		if err != nil {
			return Nullable[int64]{}, err
		}
		return Nullable[int64]{Value: v.(int64), Valid: true}, nil
	case KindBulk:
		n, err := r.ReadSize()
		if err != nil {
			return Nullable[int64]{}, err
		}
		if n >= 0 {
			return Nullable[int64]{}, r.discardBulk(n, ErrUnexpectedType.New("expected integer or null, got bulk"))
		}
		return Nullable[int64]{}, nil
	}
	return Nullable[int64]{}, r.unexpected(KindInt, k)
}

func parseBool(r *Reader) (bool, error) {
	v, err := r.ReadInt()
	return v == 1, err
}

func parseFloatText(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrResponseUnexpected.Wrap(err, "float parsing").WithProperty(EKResponse, s)
	}
	return f, nil
}

func parseFloat(r *Reader) (float64, error) {
	v, err := parseNullFloat(r)
	if err == nil && !v.Valid {
		err = ErrResponseUnexpected.New("null instead of float")
	}
	return v.Value, err
}

func parseNullFloat(r *Reader) (Nullable[float64], error) {
	s, ok, err := r.ReadBulkString()
	if err != nil || !ok {
		return Nullable[float64]{}, err
	}
	f, err := parseFloatText(s)
	return Nullable[float64]{Value: f, Valid: err == nil}, err
}

func parseString(r *Reader) (string, error) {
	s, _, err := r.ReadBulkString()
	return s, err
}

func parseNullString(r *Reader) (Nullable[string], error) {
	s, ok, err := r.ReadBulkString()
	return Nullable[string]{Value: s, Valid: ok}, err
}

func parseIntString(r *Reader) (Nullable[int64], error) {
	b, err := r.ReadBulk()
	if err != nil || b == nil {
		return Nullable[int64]{}, err
	}
	v, err := parseInt(b)
	if err != nil {
		return Nullable[int64]{}, ErrResponseUnexpected.Wrap(err, "bulk is not integer").WithProperty(EKResponse, string(b))
	}
	return Nullable[int64]{Value: v, Valid: true}, nil
}

func parseHash(r *Reader) (map[string]string, error) {
	pairs, err := Tuples[string, string](String, String).Parse(r)
	if err != nil || pairs == nil {
		return nil, err
	}
	res := make(map[string]string, len(pairs))
	for _, p := range pairs {
		res[p.First] = p.Second
	}
	return res, nil
}

func parseDate(r *Reader) (time.Time, error) {
	v, err := r.ReadInt()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}

func parseMicroDate(r *Reader) (time.Time, error) {
	if err := r.ExpectArray(2); err != nil {
		return time.Time{}, err
	}
	sec, err := parseIntString(r)
	if err != nil {
		return time.Time{}, r.skipAfter(err, 1)
	}
	usec, err := parseIntString(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec.Value, usec.Value*int64(time.Microsecond)), nil
}

func (r *Reader) unexpected(expected, actual Kind) error {
	return ErrUnexpectedType.New("expected %s, got %s", expected, actual).
		WithProperty(EKExpected, expected).
		WithProperty(EKActual, actual)
}

func (r *Reader) discardBulk(n int64, err error) error {
	if _, derr := r.b.Discard(int(n)); derr != nil {
		return r.ioErr(derr)
	}
	if derr := r.readCRLF(); derr != nil {
		return derr
	}
	return err
}
