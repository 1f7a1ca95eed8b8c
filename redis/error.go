package redis

import (
	"errors"
	"net"
	"os"
	"strings"

	"github.com/joomcode/errorx"
)

var (
	// Errors is a root namespace of all redisnet errors.
	Errors = errorx.NewNamespace("redisnet").ApplyModifiers(errorx.TypeModifierOmitStackTrace)

	// ErrOpts - options are wrong
	ErrOpts = Errors.NewSubNamespace("opts")
	// ErrContextIsNil - context is not passed to constructor
	ErrContextIsNil = ErrOpts.NewType("context_is_nil")
	// ErrNoAddressProvided - no address is given to constructor
	ErrNoAddressProvided = ErrOpts.NewType("no_address")
	// ErrUnknownEncoding - text encoding name is not known
	ErrUnknownEncoding = ErrOpts.NewType("unknown_encoding")

	// ErrTraitNotSent signals request were not written to wire.
	ErrTraitNotSent = errorx.RegisterTrait("request_not_sent")
	// ErrTraitConnectivity marks all networking and io errors.
	// Such errors lead to reconnection.
	ErrTraitConnectivity = errorx.RegisterTrait("network")

	// ErrContextClosed - context were explicitly closed (or connection / pool were shut down).
	ErrContextClosed = Errors.NewType("connection_context_closed", ErrTraitNotSent, ErrTraitConnectivity)

	// ErrIO - io error: read/write error, or connection closed while reading/writing.
	// It is not known if request were processed or not.
	ErrIO = Errors.NewType("io_error", ErrTraitConnectivity)
	// ErrTimeout - receive or send timeout elapsed.
	ErrTimeout = ErrIO.NewSubtype("timeout", errorx.Timeout())

	// ErrRequest - request malformed. Can not serialize request, no reason to retry.
	ErrRequest = Errors.NewSubNamespace("request")
	// ErrArgumentType - argument is not serializable
	ErrArgumentType = ErrRequest.NewType("argument_type")
	// ErrNoVerb - request has empty verb
	ErrNoVerb = ErrRequest.NewType("no_verb")
	// ErrCommandForbidden - command switches connection into streaming mode
	// and may be issued only through a listener.
	ErrCommandForbidden = ErrRequest.NewType("command_forbidden")

	// ErrResponse - response malformed. Server returns unexpected response, stream is out of sync.
	ErrResponse = Errors.NewSubNamespace("response")
	// ErrUnexpectedType - type tag is not the expected one
	ErrUnexpectedType = ErrResponse.NewType("unexpected_type")
	// ErrUnexpectedSize - element or byte count is not the expected one
	ErrUnexpectedSize = ErrResponse.NewType("unexpected_size")
	// ErrTruncated - end of stream were reached in the middle of a frame
	ErrTruncated = ErrResponse.NewType("truncated", ErrTraitConnectivity)
	// ErrHeaderlineTooLarge - header line too large
	ErrHeaderlineTooLarge = ErrResponse.NewType("headerline_too_large")
	// ErrHeaderlineEmpty - header line is empty
	ErrHeaderlineEmpty = ErrResponse.NewType("headerline_empty")
	// ErrIntegerParsing - integer malformed
	ErrIntegerParsing = ErrResponse.NewType("integer_parsing")
	// ErrNoFinalRN - no final "\r\n"
	ErrNoFinalRN = ErrResponse.NewType("no_final_rn")
	// ErrUnknownHeaderType - unknown header type
	ErrUnknownHeaderType = ErrResponse.NewType("unknown_headerline_type")
	// ErrResponseUnexpected - response is valid RESP, but its structure/value is unexpected
	ErrResponseUnexpected = ErrResponse.NewType("unexpected")
	// ErrPing - ping receives wrong response
	ErrPing = ErrResponse.NewType("ping")

	// ErrResult - just regular server error response.
	ErrResult = Errors.NewType("result")
	// ErrLoading - server is loading dataset
	ErrLoading = ErrResult.NewSubtype("loading")
	// ErrAuth - password didn't match
	ErrAuth = ErrResult.NewSubtype("auth")
	// ErrExecAbort - transaction were aborted
	ErrExecAbort = ErrResult.NewSubtype("exec_abort")
)

var (
	// EKLine - set by response parser for unrecognized header lines.
	EKLine = errorx.RegisterProperty("line")
	// EKExpected - expected type tag or size.
	EKExpected = errorx.RegisterProperty("expected")
	// EKActual - actual type tag or size.
	EKActual = errorx.RegisterProperty("actual")
	// EKRequest - request that triggered error.
	EKRequest = errorx.RegisterProperty("request")
	// EKArgPos - position of argument with unsupported type.
	EKArgPos = errorx.RegisterProperty("argpos")
	// EKVal - value of argument with unsupported type.
	EKVal = errorx.RegisterProperty("val")
	// EKResponse - unexpected response
	EKResponse = errorx.RegisterProperty("response")
)

// AsErrorx casts error to *errorx.Error.
// It returns nil if err is not *errorx.Error.
func AsErrorx(v interface{}) *errorx.Error {
	e, _ := v.(*errorx.Error)
	return e
}

// AsError casts interface to error (if it is error)
func AsError(v interface{}) error {
	e, _ := v.(error)
	return e
}

// HardError reports whether err breaks the connection stream.
// Server errors keep the stream in sync, everything else does not.
func HardError(err error) bool {
	return err != nil && !errorx.IsOfType(err, ErrResult)
}

// StreamBroken reports whether err leaves the response stream at unknown position.
// Server errors and unexpected but fully consumed responses keep it in sync.
func StreamBroken(err error) bool {
	return HardError(err) && !errorx.IsOfType(err, ErrResponseUnexpected)
}

// NewResultError classifies server error text.
func NewResultError(txt string) *errorx.Error {
	switch {
	case strings.HasPrefix(txt, "LOADING"):
		return ErrLoading.New(txt)
	case strings.HasPrefix(txt, "NOAUTH"), strings.HasPrefix(txt, "WRONGPASS"),
		strings.HasPrefix(txt, "ERR invalid password"):
		return ErrAuth.New(txt)
	case strings.HasPrefix(txt, "EXECABORT"):
		return ErrExecAbort.New(txt)
	}
	return ErrResult.New(txt)
}

// WrapIO converts transport level error to the package error.
func WrapIO(err error) *errorx.Error {
	if err == nil {
		return nil
	}
	if e := errorx.Cast(err); e != nil && e.IsOfType(ErrIO) {
		return e
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return ErrTimeout.WrapWithNoMessage(err)
	}
	return ErrIO.WrapWithNoMessage(err)
}
