package tlv

import (
	"encoding/binary"
	"fmt"
)

// Field is a single raw field read from a TLV buffer.
type Field struct {
	// Tag is the field tag; its meaning depends on the direction
	Tag byte

	// Offset is the position of the field header in the buffer
	Offset int

	// Value is the field payload, aliasing the decoded buffer
	Value []byte
}

// String returns the field value as a string.
func (f Field) String() string {
	return string(f.Value)
}

// Uint32 returns the field value as a big-endian uint32.
func (f Field) Uint32() (uint32, error) {
	if len(f.Value) != Uint32Length {
		return 0, &MalformedFieldError{
			Tag:    f.Tag,
			Offset: f.Offset,
			Reason: fmt.Sprintf("uint32 field has length %d, expected %d", len(f.Value), Uint32Length),
		}
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

// Bool returns the field value as a bool. Any nonzero byte is true.
func (f Field) Bool() (bool, error) {
	if len(f.Value) != BoolLength {
		return false, &MalformedFieldError{
			Tag:    f.Tag,
			Offset: f.Offset,
			Reason: fmt.Sprintf("bool field has length %d, expected %d", len(f.Value), BoolLength),
		}
	}
	return f.Value[0] != 0, nil
}

// Decoder reads fields sequentially from a buffer it does not own.
type Decoder struct {
	buf    []byte
	cursor int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// More reports whether unread bytes remain.
func (d *Decoder) More() bool {
	return d.cursor < len(d.buf)
}

// Offset returns the current cursor position.
func (d *Decoder) Offset() int {
	return d.cursor
}

// Next reads the field at the cursor and advances past it.
// The cursor is left untouched when the field is malformed.
func (d *Decoder) Next() (Field, error) {
	start := d.cursor
	if start >= len(d.buf) {
		return Field{}, &MalformedFieldError{Offset: start, Reason: "buffer exhausted"}
	}

	tag := d.buf[start]
	if start+1 >= len(d.buf) {
		return Field{}, &MalformedFieldError{Tag: tag, Offset: start, Reason: "missing length byte"}
	}

	length := int(d.buf[start+1])
	end := start + HeaderSize + length
	if end > len(d.buf) {
		return Field{}, &MalformedFieldError{
			Tag:    tag,
			Offset: start,
			Reason: fmt.Sprintf("declared length %d exceeds remaining %d bytes", length, len(d.buf)-start-HeaderSize),
		}
	}

	d.cursor = end
	return Field{Tag: tag, Offset: start, Value: d.buf[start+HeaderSize : end]}, nil
}

// DecodeDecision decodes a server reply. Any malformed or unrecognized field
// fails the whole decode and the zero Decision is returned.
func DecodeDecision(buf []byte) (Decision, error) {
	var d Decision
	dec := NewDecoder(buf)

	for dec.More() {
		f, err := dec.Next()
		if err != nil {
			return Decision{}, err
		}

		switch DecisionTag(f.Tag) {
		case TagHost:
			if len(f.Value) > MaxEndpointFieldLength {
				return Decision{}, endpointTooLong(f)
			}
			d.Host = f.String()
		case TagPort:
			port, err := f.Uint32()
			if err != nil {
				return Decision{}, err
			}
			if port > MaxPort {
				return Decision{}, &MalformedFieldError{
					Tag:    f.Tag,
					Offset: f.Offset,
					Reason: fmt.Sprintf("port %d out of range", port),
				}
			}
			d.Port = uint16(port)
		case TagPath:
			if len(f.Value) > MaxEndpointFieldLength {
				return Decision{}, endpointTooLong(f)
			}
			d.Path = f.String()
		case TagScheduled:
			scheduled, err := f.Bool()
			if err != nil {
				return Decision{}, err
			}
			d.Scheduled = scheduled
		default:
			return Decision{}, &UnknownFieldError{Tag: f.Tag, Offset: f.Offset}
		}
	}

	return d, nil
}

// DecodeIdentity decodes a device report. Used by servers and tests.
func DecodeIdentity(buf []byte) (Identity, error) {
	var id Identity
	dec := NewDecoder(buf)

	for dec.More() {
		f, err := dec.Next()
		if err != nil {
			return Identity{}, err
		}

		switch IdentityTag(f.Tag) {
		case TagFirmwareVersion:
			id.FirmwareVersion = f.String()
		case TagModelNumber:
			id.ModelNumber = f.String()
		case TagSerialNumber:
			id.SerialNumber = f.String()
		case TagManufacturer:
			id.Manufacturer = f.String()
		default:
			return Identity{}, &UnknownFieldError{Tag: f.Tag, Offset: f.Offset}
		}
	}

	return id, nil
}

func endpointTooLong(f Field) error {
	return &MalformedFieldError{
		Tag:    f.Tag,
		Offset: f.Offset,
		Reason: fmt.Sprintf("%s is %d bytes, maximum is %d", DecisionTag(f.Tag), len(f.Value), MaxEndpointFieldLength),
	}
}
