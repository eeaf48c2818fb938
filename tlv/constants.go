package tlv

// IdentityTag identifies a field in the device report.
type IdentityTag byte

// Report field tags. Must match the server's decoder bit for bit.
const (
	// TagFirmwareVersion is the running firmware version
	TagFirmwareVersion IdentityTag = 1

	// TagModelNumber is the device model
	TagModelNumber IdentityTag = 2

	// TagSerialNumber is the device serial number
	TagSerialNumber IdentityTag = 3

	// TagManufacturer is the device manufacturer
	TagManufacturer IdentityTag = 4
)

func (t IdentityTag) String() string {
	switch t {
	case TagFirmwareVersion:
		return "firmware-version"
	case TagModelNumber:
		return "model-number"
	case TagSerialNumber:
		return "serial-number"
	case TagManufacturer:
		return "manufacturer"
	default:
		return "unknown"
	}
}

// DecisionTag identifies a field in the server reply.
type DecisionTag byte

// Reply field tags.
const (
	// TagHost is the firmware download host
	TagHost DecisionTag = 1

	// TagPort is the firmware download port (uint32 on the wire)
	TagPort DecisionTag = 2

	// TagPath is the firmware download path
	TagPath DecisionTag = 3

	// TagScheduled tells the device an update is scheduled
	TagScheduled DecisionTag = 4
)

func (t DecisionTag) String() string {
	switch t {
	case TagHost:
		return "host"
	case TagPort:
		return "port"
	case TagPath:
		return "path"
	case TagScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

const (
	// HeaderSize is the size of a field header: TAG(1) + LENGTH(1)
	HeaderSize = 2

	// MaxValueLength is the largest value a single length byte can describe
	MaxValueLength = 255

	// Uint32Length is the value length of a uint32 field
	Uint32Length = 4

	// BoolLength is the value length of a bool field
	BoolLength = 1

	// MaxEndpointFieldLength bounds the host and path of a decision.
	// Devices keep these in 25-byte buffers including the terminator.
	MaxEndpointFieldLength = 24

	// MaxPort is the largest port a decision may carry
	MaxPort = 0xFFFF
)
