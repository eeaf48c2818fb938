// Package boot keeps the image swap state the boot loader acts on.
package boot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// State is the swap state of the image slots.
type State string

const (
	// StateNone means no swap is pending and the running image is not confirmed
	StateNone State = "none"

	// StateTest means the secondary image boots once on the next restart
	StateTest State = "test"

	// StateConfirmed means the running image is permanent
	StateConfirmed State = "confirmed"
)

// FlagFile stores the swap state in a small text file.
type FlagFile struct {
	path string
}

// NewFlagFile creates a FlagFile at path.
func NewFlagFile(path string) *FlagFile {
	return &FlagFile{path: path}
}

// State reads the current swap state. A missing file is StateNone.
func (f *FlagFile) State() (State, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return StateNone, nil
	}
	if err != nil {
		return "", fmt.Errorf("read boot flag: %w", err)
	}

	switch s := State(strings.TrimSpace(string(b))); s {
	case StateNone, StateTest, StateConfirmed:
		return s, nil
	default:
		return "", fmt.Errorf("invalid boot flag %q", s)
	}
}

// Pending reports whether a test boot is requested.
func (f *FlagFile) Pending() (bool, error) {
	s, err := f.State()
	return s == StateTest, err
}

// RequestTestBoot marks the secondary image for a single test boot.
func (f *FlagFile) RequestTestBoot() error {
	return f.write(StateTest)
}

// Confirm makes the running image permanent. It is a no-op when the image
// is already confirmed.
func (f *FlagFile) Confirm() error {
	s, err := f.State()
	if err != nil {
		return err
	}
	if s == StateConfirmed {
		return nil
	}
	return f.write(StateConfirmed)
}

func (f *FlagFile) write(s State) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".bootflag-*")
	if err != nil {
		return fmt.Errorf("write boot flag: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(string(s) + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write boot flag: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync boot flag: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close boot flag: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write boot flag: %w", err)
	}
	return nil
}
