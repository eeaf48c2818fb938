package transfer

import "time"

// Transfer phases reported in Progress.
const (
	PhaseErasing     = "erasing"
	PhaseDownloading = "downloading"
	PhaseFlushing    = "flushing"
	PhaseComplete    = "complete"
)

// Progress contains information about the transfer progress.
// Passed to ProgressCallback at least once per stored chunk.
type Progress struct {
	// Phase describes the current operation phase:
	//   "erasing"     - Erasing the storage region
	//   "downloading" - Receiving and storing chunks
	//   "flushing"    - Flushing buffered bytes
	//   "complete"    - Image committed for a test boot
	Phase string

	// BytesWritten is the total number of bytes stored so far
	BytesWritten int64

	// TotalBytes is the declared image size, or -1 when unknown
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0), or -1 when
	// the image size is unknown
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called during the transfer to report progress.
// It runs on the transfer's goroutine and should return quickly.
type ProgressCallback func(Progress)
