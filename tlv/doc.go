// Package tlv implements the tag-length-value encoding used by the simple FOTA
// report exchange between a device and the FOTA server.
//
// # Wire Format
//
// Every field, in both directions, uses the same layout:
//
//	[TAG(1)][LENGTH(1)][VALUE(LENGTH)]
//
// Where:
//   - strings carry their raw bytes (at most 255)
//   - uint32 values are 4 bytes, big-endian
//   - bool values are 1 byte, nonzero is true
//
// # Tags
//
// Tags are scoped by direction. The device report uses IdentityTag values,
// the server reply uses DecisionTag values. The same number means different
// things in each direction:
//
//	tag  report (device -> server)  reply (server -> device)
//	1    firmware version           host
//	2    model number               port
//	3    serial number              path
//	4    manufacturer               scheduled
//
// # Encoding
//
// Append* functions write into a caller-owned buffer:
//
//	buf, err := tlv.AppendString(nil, byte(tlv.TagFirmwareVersion), "1.0.0")
//
// # Decoding
//
// DecodeDecision walks a reply field by field and rejects tags it does not
// recognize. A failed decode never returns a partially filled Decision:
//
//	d, err := tlv.DecodeDecision(payload)
//	var unknown *tlv.UnknownFieldError
//	if errors.As(err, &unknown) {
//	    // server speaks a newer dialect
//	}
package tlv
