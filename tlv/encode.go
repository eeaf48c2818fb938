package tlv

import "encoding/binary"

// AppendString appends a string field to dst.
//
// Field structure:
//
//	[TAG][LEN][BYTES...]
//
// Values longer than MaxValueLength are rejected, never truncated.
func AppendString(dst []byte, tag byte, value string) ([]byte, error) {
	if len(value) > MaxValueLength {
		return dst, &ValueTooLongError{Tag: tag, Length: len(value), Max: MaxValueLength}
	}

	dst = append(dst, tag, byte(len(value)))
	dst = append(dst, value...)
	return dst, nil
}

// AppendUint32 appends a big-endian uint32 field to dst.
//
// Field structure:
//
//	[TAG][0x04][B3][B2][B1][B0]
func AppendUint32(dst []byte, tag byte, value uint32) []byte {
	dst = append(dst, tag, Uint32Length)
	return binary.BigEndian.AppendUint32(dst, value)
}

// AppendBool appends a bool field to dst.
//
// Field structure:
//
//	[TAG][0x01][0x00|0x01]
func AppendBool(dst []byte, tag byte, value bool) []byte {
	b := byte(0)
	if value {
		b = 1
	}
	return append(dst, tag, BoolLength, b)
}

// EncodeIdentity encodes a version report payload. Fields are emitted in the
// order devices have always sent them: version, manufacturer, serial, model.
func EncodeIdentity(id Identity) ([]byte, error) {
	buf := make([]byte, 0, 4*HeaderSize+len(id.FirmwareVersion)+len(id.Manufacturer)+
		len(id.SerialNumber)+len(id.ModelNumber))

	var err error
	if buf, err = AppendString(buf, byte(TagFirmwareVersion), id.FirmwareVersion); err != nil {
		return nil, err
	}
	if buf, err = AppendString(buf, byte(TagManufacturer), id.Manufacturer); err != nil {
		return nil, err
	}
	if buf, err = AppendString(buf, byte(TagSerialNumber), id.SerialNumber); err != nil {
		return nil, err
	}
	if buf, err = AppendString(buf, byte(TagModelNumber), id.ModelNumber); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeDecision encodes a reply payload the way the FOTA server does.
// Devices never call this; it exists for test servers and tooling.
func EncodeDecision(d Decision) ([]byte, error) {
	if len(d.Host) > MaxEndpointFieldLength {
		return nil, &ValueTooLongError{Tag: byte(TagHost), Length: len(d.Host), Max: MaxEndpointFieldLength}
	}
	if len(d.Path) > MaxEndpointFieldLength {
		return nil, &ValueTooLongError{Tag: byte(TagPath), Length: len(d.Path), Max: MaxEndpointFieldLength}
	}

	buf := make([]byte, 0, HeaderSize+len(d.Host)+HeaderSize+Uint32Length+
		HeaderSize+len(d.Path)+HeaderSize+BoolLength)

	var err error
	if buf, err = AppendString(buf, byte(TagHost), d.Host); err != nil {
		return nil, err
	}
	buf = AppendUint32(buf, byte(TagPort), uint32(d.Port))
	if buf, err = AppendString(buf, byte(TagPath), d.Path); err != nil {
		return nil, err
	}
	buf = AppendBool(buf, byte(TagScheduled), d.Scheduled)
	return buf, nil
}
