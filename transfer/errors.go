package transfer

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/lab5e/nRF9160-barebone-fota/download"
)

// StorageErrorKind classifies a storage failure.
type StorageErrorKind int

const (
	// KindInit means the region could not be erased
	KindInit StorageErrorKind = iota + 1

	// KindWrite means a chunk could not be appended
	KindWrite

	// KindFlush means buffered bytes could not be flushed
	KindFlush

	// KindCapacityExceeded means the image does not fit in the region
	KindCapacityExceeded
)

func (k StorageErrorKind) String() string {
	switch k {
	case KindInit:
		return "init failed"
	case KindWrite:
		return "write failed"
	case KindFlush:
		return "flush failed"
	case KindCapacityExceeded:
		return "capacity exceeded"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// StorageError indicates that the storage region rejected an operation or
// that the image cannot fit in it.
type StorageError struct {
	Kind StorageErrorKind

	// Code is the numeric sub-code of the underlying error, if it has one
	Code int

	// Size is the declared size or the size the write would have reached,
	// set for KindCapacityExceeded
	Size int64

	// Capacity of the region, set for KindCapacityExceeded
	Capacity int64

	Err error
}

func (e *StorageError) Error() string {
	msg := "storage " + e.Kind.String()
	if e.Kind == KindCapacityExceeded && e.Capacity > 0 {
		msg = fmt.Sprintf("%s: image needs %d bytes, region holds %d", msg, e.Size, e.Capacity)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches a StorageError sentinel of the same kind.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil && t.Capacity == 0
}

// BootErrorKind classifies a boot control failure.
type BootErrorKind int

const (
	// KindRequestFailed means the test boot could not be requested
	KindRequestFailed BootErrorKind = iota + 1

	// KindRestartFailed means the restart call returned an error
	KindRestartFailed
)

func (k BootErrorKind) String() string {
	switch k {
	case KindRequestFailed:
		return "test boot request failed"
	case KindRestartFailed:
		return "restart failed"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// BootError indicates that the boot loader or the restart refused the image.
type BootError struct {
	Kind BootErrorKind
	Code int
	Err  error
}

func (e *BootError) Error() string {
	msg := "boot control: " + e.Kind.String()
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BootError) Unwrap() error {
	return e.Err
}

// Is matches a BootError sentinel of the same kind.
func (e *BootError) Is(target error) bool {
	t, ok := target.(*BootError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil
}

// DownloadError indicates that the image download could not be opened or
// ended with an error before completion.
type DownloadError struct {
	Endpoint string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download from %s failed: %v", e.Endpoint, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Sentinel values for errors.Is.
var (
	ErrStorageInit   = &StorageError{Kind: KindInit}
	ErrStorageWrite  = &StorageError{Kind: KindWrite}
	ErrStorageFlush  = &StorageError{Kind: KindFlush}
	ErrImageTooLarge = &StorageError{Kind: KindCapacityExceeded}
	ErrBootRequest   = &BootError{Kind: KindRequestFailed}
	ErrRestart       = &BootError{Kind: KindRestartFailed}
)

var (
	// ErrNotScheduled is returned by Run for a decision without an update.
	ErrNotScheduled = download.ErrNotScheduled

	// ErrAlreadyFinalized is returned when a Finalizer is used a second time.
	ErrAlreadyFinalized = errors.New("update already finalized")

	// ErrBusy is returned when Run is called while a transfer is running.
	ErrBusy = errors.New("transfer already in progress")

	errIncomplete = errors.New("download ended before completion")
)

// errorCode extracts a best-effort numeric code from err.
func errorCode(err error) int {
	type coder interface{ Code() int }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
