package transfer

import (
	"context"

	"github.com/lab5e/nRF9160-barebone-fota/download"
)

// Storage is the fixed-capacity region the new image is written to.
// The orchestrator owns it exclusively for the duration of a transfer.
type Storage interface {
	// Erase resets the whole region
	Erase(ctx context.Context) error

	// Append writes data at the current end of the region. A call with
	// final set flushes any buffered bytes to durable storage.
	Append(data []byte, final bool) error

	// Capacity is the size of the region in bytes
	Capacity() int64
}

// BootControl talks to the boot loader.
type BootControl interface {
	// RequestTestBoot marks the image in the secondary slot for a single
	// test boot. The new image must confirm itself after booting or the boot
	// loader reverts to the current one.
	RequestTestBoot() error
}

// Restarter restarts the system. On real hardware Restart does not return.
type Restarter interface {
	Restart() error
}

// RestartFunc adapts a function to Restarter.
type RestartFunc func() error

// Restart calls f.
func (f RestartFunc) Restart() error {
	return f()
}

// Source opens image downloads. *download.Client implements it.
type Source interface {
	Open(ctx context.Context, ep download.Endpoint, offset int64) (<-chan download.Event, error)
}
