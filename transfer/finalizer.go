package transfer

import (
	"sync"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// Finalizer turns a fully written region into a pending test boot and
// restarts the system. It does its work at most once.
type Finalizer struct {
	boot    BootControl
	restart Restarter
	logger  logging.Logger

	mu   sync.Mutex
	done bool
}

// NewFinalizer creates a Finalizer. Panics if boot or restart is nil.
func NewFinalizer(boot BootControl, restart Restarter, logger logging.Logger) *Finalizer {
	if boot == nil {
		panic("boot control cannot be nil")
	}
	if restart == nil {
		panic("restarter cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Finalizer{boot: boot, restart: restart, logger: logger}
}

// Finalize flushes region, requests a test boot and restarts. A failed flush
// or boot request leaves the running image in charge and no restart happens.
// Once a test boot was requested, a later call returns ErrAlreadyFinalized.
func (f *Finalizer) Finalize(region Storage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return ErrAlreadyFinalized
	}

	if err := region.Append(nil, true); err != nil {
		return &StorageError{Kind: KindFlush, Code: errorCode(err), Err: err}
	}

	if err := f.boot.RequestTestBoot(); err != nil {
		return &BootError{Kind: KindRequestFailed, Code: errorCode(err), Err: err}
	}

	f.done = true
	f.logger.Info("test boot requested, restarting")

	if err := f.restart.Restart(); err != nil {
		return &BootError{Kind: KindRestartFailed, Code: errorCode(err), Err: err}
	}
	return nil
}

// Finalized reports whether a test boot was requested.
func (f *Finalizer) Finalized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}
