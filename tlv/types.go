package tlv

import "fmt"

// Identity describes the firmware running on the device.
// It is fixed for the life of the running image.
type Identity struct {
	// FirmwareVersion is the version of the running image
	FirmwareVersion string

	// Manufacturer is the device manufacturer
	Manufacturer string

	// SerialNumber is the device serial number
	SerialNumber string

	// ModelNumber is the device model
	ModelNumber string
}

// Validate checks that every field fits in a single TLV field.
func (id Identity) Validate() error {
	fields := []struct {
		tag   IdentityTag
		value string
	}{
		{TagFirmwareVersion, id.FirmwareVersion},
		{TagManufacturer, id.Manufacturer},
		{TagSerialNumber, id.SerialNumber},
		{TagModelNumber, id.ModelNumber},
	}
	for _, f := range fields {
		if len(f.value) > MaxValueLength {
			return &ValueTooLongError{Tag: byte(f.tag), Length: len(f.value), Max: MaxValueLength}
		}
	}
	return nil
}

// Decision is the server's answer to a version report.
// Host, Port and Path are only meaningful when Scheduled is true.
type Decision struct {
	// Host is the firmware download host
	Host string

	// Port is the firmware download port
	Port uint16

	// Path is the firmware download path
	Path string

	// Scheduled is true when an update is waiting for this device
	Scheduled bool
}

func (d Decision) String() string {
	if !d.Scheduled {
		return "no update scheduled"
	}
	return fmt.Sprintf("update scheduled at %s:%d%s", d.Host, d.Port, d.Path)
}
