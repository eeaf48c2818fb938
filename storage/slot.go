// Package storage provides a file-backed image slot for hosts without flash.
//
// A Slot behaves like the secondary image partition: it has a fixed capacity,
// must be erased before it is written, and only grows by appending. Writes
// are buffered in blocks and reach the file when a block fills or when the
// caller asks for a final flush.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// DefaultWriteBlockSize is the size of the write buffer.
const DefaultWriteBlockSize = 512

// ErrNotErased is returned by Append before the first Erase.
var ErrNotErased = errors.New("slot not erased")

// CapacityError is returned when an append would overflow the slot.
type CapacityError struct {
	Capacity int64
	Size     int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("slot full: %d bytes exceed capacity %d", e.Size, e.Capacity)
}

// Code returns -EFBIG.
func (e *CapacityError) Code() int {
	return -27
}

// Option configures a Slot.
type Option func(*Slot)

// WithWriteBlockSize sets the write buffer size.
func WithWriteBlockSize(n int) Option {
	return func(s *Slot) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithLogger sets a logger for slot operations.
func WithLogger(logger logging.Logger) Option {
	return func(s *Slot) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Slot is a fixed-capacity image region stored in a file.
//
// Slot is safe for concurrent use.
type Slot struct {
	path      string
	capacity  int64
	blockSize int
	logger    logging.Logger

	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	written int64
}

// NewSlot creates a slot backed by the file at path. The file is not touched
// until Erase.
func NewSlot(path string, capacity int64, opts ...Option) (*Slot, error) {
	if path == "" {
		return nil, errors.New("slot path cannot be empty")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("slot capacity must be positive, got %d", capacity)
	}

	s := &Slot{
		path:      path,
		capacity:  capacity,
		blockSize: DefaultWriteBlockSize,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Slot) Path() string {
	return s.path
}

// Capacity returns the slot size in bytes.
func (s *Slot) Capacity() int64 {
	return s.capacity
}

// Written returns the number of bytes appended since the last Erase,
// including bytes still buffered.
func (s *Slot) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Erase truncates the backing file and prepares the slot for writing.
func (s *Slot) Erase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		s.logger.Error("closing slot before erase", "path", s.path, "error", err.Error())
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("erase slot: %w", err)
	}

	s.file = f
	s.w = bufio.NewWriterSize(f, s.blockSize)
	s.written = 0
	s.logger.Debug("slot erased", "path", s.path, "capacity", s.capacity)
	return nil
}

// Append adds data to the end of the slot. With final set, buffered bytes
// are written out and the file is synced.
func (s *Slot) Append(data []byte, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return ErrNotErased
	}

	if next := s.written + int64(len(data)); next > s.capacity {
		return &CapacityError{Capacity: s.capacity, Size: next}
	}

	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("write slot: %w", err)
	}

	if !final {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush slot: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync slot: %w", err)
	}
	s.logger.Debug("slot flushed", "path", s.path, "bytes", s.written)
	return nil
}

// Close releases the backing file. Buffered bytes that were never flushed
// are discarded.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Slot) closeLocked() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.w = nil
	return err
}
