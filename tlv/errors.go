package tlv

import (
	"errors"
	"fmt"
)

// MalformedFieldError indicates a field that cannot be decoded: the buffer
// ended early or the declared length does not fit the field type.
type MalformedFieldError struct {
	// Tag is the tag of the offending field
	Tag byte

	// Offset is the buffer offset of the field header
	Offset int

	// Reason describes what is wrong with the field
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed field (tag %d) at offset %d: %s", e.Tag, e.Offset, e.Reason)
}

// UnknownFieldError indicates a tag the decoder does not recognize.
type UnknownFieldError struct {
	Tag    byte
	Offset int
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field id %d at offset %d", e.Tag, e.Offset)
}

// ValueTooLongError indicates a value that does not fit in one length byte.
type ValueTooLongError struct {
	Tag    byte
	Length int
	Max    int
}

func (e *ValueTooLongError) Error() string {
	return fmt.Sprintf("value for tag %d is %d bytes, maximum is %d", e.Tag, e.Length, e.Max)
}

// IsUnknownField returns true if the error is an UnknownFieldError.
func IsUnknownField(err error) bool {
	var unknown *UnknownFieldError
	return errors.As(err, &unknown)
}
