package download

import "fmt"

// EventKind is the type of a download event.
type EventKind int

const (
	// EventSize announces the total image size
	EventSize EventKind = iota + 1

	// EventChunk carries the next piece of the image
	EventChunk

	// EventDone ends a successful download
	EventDone

	// EventError ends a failed download
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventSize:
		return "size"
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered by a running download.
type Event struct {
	Kind EventKind

	// Size is the total image size (EventSize)
	Size int64

	// Data is the chunk payload (EventChunk); owned by the receiver
	Data []byte

	// Err is the failure (EventError)
	Err error
}
