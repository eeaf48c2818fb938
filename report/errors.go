package report

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorKind classifies a failed version report.
type ErrorKind int

const (
	// KindTimeout means no reply arrived within the reply timeout
	KindTimeout ErrorKind = iota + 1

	// KindTransport means the socket could not be opened, written or read
	KindTransport

	// KindMalformedReply means the reply envelope or payload was invalid
	KindMalformedReply

	// KindUnknownField means the reply carried a field tag we do not know
	KindUnknownField

	// KindInvalidRequest means the report could not be built
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport error"
	case KindMalformedReply:
		return "malformed reply"
	case KindUnknownField:
		return "unknown field"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// ProtocolError is returned for every failed version report.
type ProtocolError struct {
	// Kind is the failure class
	Kind ErrorKind

	// Code is an optional numeric sub-code: errno for transport errors,
	// the CoAP response code for rejected replies
	Code int

	// Err is the underlying error, if any
	Err error
}

func (e *ProtocolError) Error() string {
	msg := "version report: " + e.Kind.String()
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is matches another ProtocolError of the same kind, so the Err* values can
// be used with errors.Is.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil && (t.Code == 0 || t.Code == e.Code)
}

// Sentinel values for errors.Is.
var (
	ErrTimeout        = &ProtocolError{Kind: KindTimeout}
	ErrTransport      = &ProtocolError{Kind: KindTransport}
	ErrMalformedReply = &ProtocolError{Kind: KindMalformedReply}
	ErrUnknownField   = &ProtocolError{Kind: KindUnknownField}
	ErrInvalidRequest = &ProtocolError{Kind: KindInvalidRequest}
)

// ErrPollExpired is returned by Transport.Receive when nothing arrived
// within the poll interval.
var ErrPollExpired = errors.New("no datagram within poll interval")

// errorCode extracts a best-effort numeric code from err.
func errorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	type coder interface{ Code() int }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 0
}
