package redis

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// UTF8 is the default text encoding. Strings are put on the wire as is.
var UTF8 encoding.Encoding

// EncodingByName looks up text encoding by its WHATWG name or alias
// ("utf-8", "latin1", "windows-1251", "utf-16le", ...).
// UTF-8 maps to nil, ie passthrough.
func EncodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, ErrUnknownEncoding.Wrap(err, "unknown encoding %q", name)
	}
	return enc, nil
}

func appendEncoded(buf []byte, enc encoding.Encoding, s string) ([]byte, error) {
	if enc == nil {
		return append(buf, s...), nil
	}
	b, err := encoding.ReplaceUnsupported(enc.NewEncoder()).String(s)
	if err != nil {
		return buf, err
	}
	return append(buf, b...), nil
}

func decodeString(enc encoding.Encoding, b []byte) (string, error) {
	if enc == nil {
		return string(b), nil
	}
	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", ErrResponseUnexpected.Wrap(err, "text decoding")
	}
	return string(s), nil
}
