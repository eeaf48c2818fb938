package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/lab5e/nRF9160-barebone-fota/download"
	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/tlv"
)

// State is a step of a firmware transfer.
type State string

// Transfer states. Committed and Aborted are terminal.
const (
	StateInit      State = "init"
	StateSizeCheck State = "size_check"
	StateStreaming State = "streaming"
	StateFlushing  State = "flushing"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

const (
	evErased = "erased"
	evStream = "stream"
	evFlush  = "flush"
	evCommit = "commit"
	evAbort  = "abort"
)

// Result is the outcome of one transfer.
type Result struct {
	// State is the terminal state, or StateInit when the decision was rejected
	State State

	// Endpoint the image was downloaded from
	Endpoint download.Endpoint

	// BytesWritten is the number of image bytes stored
	BytesWritten int64

	// DeclaredSize is the size announced by the server, or -1
	DeclaredSize int64

	// Elapsed is the transfer duration
	Elapsed time.Duration
}

// Orchestrator moves a scheduled image from its download endpoint into the
// storage region and finalizes it.
//
// Only one Run may be active at a time; a concurrent call returns ErrBusy.
type Orchestrator struct {
	source    Source
	storage   Storage
	finalizer *Finalizer
	config    Config
	running   atomic.Bool
}

// New creates an Orchestrator. Panics if any dependency is nil.
//
// Example:
//
//	o := transfer.New(download.New(), slot, fin,
//	    transfer.WithScheme(download.SchemeHTTP),
//	    transfer.WithLogger(logger),
//	)
func New(source Source, storage Storage, finalizer *Finalizer, opts ...Option) *Orchestrator {
	if source == nil {
		panic("source cannot be nil")
	}
	if storage == nil {
		panic("storage cannot be nil")
	}
	if finalizer == nil {
		panic("finalizer cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Orchestrator{
		source:    source,
		storage:   storage,
		finalizer: finalizer,
		config:    cfg,
	}
}

func newMachine(log logging.Logger) *fsm.FSM {
	live := []string{string(StateInit), string(StateSizeCheck), string(StateStreaming), string(StateFlushing)}
	return fsm.NewFSM(
		string(StateInit),
		fsm.Events{
			{Name: evErased, Src: []string{string(StateInit)}, Dst: string(StateSizeCheck)},
			{Name: evStream, Src: []string{string(StateSizeCheck)}, Dst: string(StateStreaming)},
			{Name: evFlush, Src: []string{string(StateSizeCheck), string(StateStreaming)}, Dst: string(StateFlushing)},
			{Name: evCommit, Src: []string{string(StateFlushing)}, Dst: string(StateCommitted)},
			{Name: evAbort, Src: live, Dst: string(StateAborted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("transfer state", "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// run is the state of a single transfer. It is owned by the goroutine that
// called Run.
type run struct {
	o       *Orchestrator
	log     logging.Logger
	machine *fsm.FSM
	result  Result
	start   time.Time
	cancel  context.CancelFunc
}

func (r *run) state() State {
	return State(r.machine.Current())
}

func (r *run) transition(event string) {
	if err := r.machine.Event(context.Background(), event); err != nil {
		panic(fmt.Sprintf("transfer: %s from %s: %v", event, r.machine.Current(), err))
	}
	r.result.State = r.state()
}

func (r *run) abort(err error) (Result, error) {
	r.cancel()
	r.transition(evAbort)
	r.result.Elapsed = time.Since(r.start)
	r.log.Error("transfer aborted",
		"endpoint", r.result.Endpoint.String(),
		"bytes_written", r.result.BytesWritten,
		"error", err.Error(),
	)
	return r.result, err
}

func (r *run) progress(phase string) {
	p := Progress{
		Phase:        phase,
		BytesWritten: r.result.BytesWritten,
		TotalBytes:   r.result.DeclaredSize,
		Percentage:   -1,
		ElapsedTime:  time.Since(r.start),
	}
	if p.TotalBytes > 0 {
		p.Percentage = float64(p.BytesWritten) * 100 / float64(p.TotalBytes)
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	} else if p.TotalBytes == 0 {
		p.Percentage = 100
	}
	r.o.reportProgress(p)
}

// Run downloads the image named by decision into storage and finalizes it.
//
// The sequence is:
//  1. Erase the storage region
//  2. Open the download at offset zero
//  3. Reject a declared size that exceeds the region capacity
//  4. Append every chunk in order
//  5. Flush, request a test boot and restart
//
// Every failure aborts the transfer and leaves the running image in place.
// Cancelling ctx stops the download and aborts. The returned Result always
// carries the final state.
func (o *Orchestrator) Run(ctx context.Context, decision tlv.Decision) (Result, error) {
	if !decision.Scheduled {
		return Result{State: StateInit, DeclaredSize: -1}, ErrNotScheduled
	}
	if !o.running.CompareAndSwap(false, true) {
		return Result{State: StateInit, DeclaredSize: -1}, ErrBusy
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.FromContext(ctx, o.config.Logger)
	r := &run{
		o:       o,
		log:     log,
		machine: newMachine(log),
		result:  Result{State: StateInit, DeclaredSize: -1},
		start:   time.Now(),
		cancel:  cancel,
	}

	ep, err := download.EndpointFromDecision(decision, o.config.Scheme)
	if err != nil {
		return r.abort(&DownloadError{Endpoint: decision.String(), Err: err})
	}
	r.result.Endpoint = ep

	// Phase 1: Erase
	r.progress(PhaseErasing)
	if err := o.storage.Erase(ctx); err != nil {
		return r.abort(&StorageError{Kind: KindInit, Code: errorCode(err), Err: err})
	}
	r.transition(evErased)

	// Phase 2: Open the download
	r.log.Info("downloading image", "endpoint", ep.String(), "capacity", o.storage.Capacity())
	events, err := o.source.Open(ctx, ep, 0)
	if err != nil {
		return r.abort(&DownloadError{Endpoint: ep.String(), Err: err})
	}

	// Phases 3 and 4: Size check and streaming
	for ev := range events {
		switch ev.Kind {
		case download.EventSize:
			if err := r.declare(ev.Size); err != nil {
				return r.abort(err)
			}

		case download.EventChunk:
			if err := r.store(ev.Data); err != nil {
				return r.abort(err)
			}

		case download.EventError:
			return r.abort(&DownloadError{Endpoint: ep.String(), Err: ev.Err})

		case download.EventDone:
			return r.finish()
		}
	}

	if err := ctx.Err(); err != nil {
		return r.abort(&DownloadError{Endpoint: ep.String(), Err: err})
	}
	return r.abort(&DownloadError{Endpoint: ep.String(), Err: errIncomplete})
}

// declare records the image size announced by the server. Only the first
// announcement counts.
func (r *run) declare(size int64) error {
	if r.result.DeclaredSize >= 0 {
		if size != r.result.DeclaredSize {
			r.log.Debug("ignoring changed image size",
				"declared", r.result.DeclaredSize,
				"announced", size,
			)
		}
		return nil
	}

	r.result.DeclaredSize = size
	capacity := r.o.storage.Capacity()
	r.log.Debug("image size", "declared", size, "capacity", capacity)

	if size > capacity {
		return &StorageError{Kind: KindCapacityExceeded, Size: size, Capacity: capacity}
	}
	return nil
}

// store appends one chunk to the region.
func (r *run) store(data []byte) error {
	if r.state() == StateSizeCheck {
		r.transition(evStream)
	}
	if len(data) == 0 {
		return nil
	}

	capacity := r.o.storage.Capacity()
	next := r.result.BytesWritten + int64(len(data))
	if next > capacity {
		return &StorageError{Kind: KindCapacityExceeded, Size: next, Capacity: capacity}
	}

	if err := r.o.storage.Append(data, false); err != nil {
		return &StorageError{Kind: KindWrite, Code: errorCode(err), Err: err}
	}
	r.result.BytesWritten = next
	r.progress(PhaseDownloading)
	return nil
}

// finish flushes the region and hands the image to the finalizer.
func (r *run) finish() (Result, error) {
	r.transition(evFlush)
	r.result.Elapsed = time.Since(r.start)

	var rate float64
	if secs := r.result.Elapsed.Seconds(); secs > 0 {
		rate = float64(r.result.BytesWritten) / secs
	}
	r.log.Info("download complete",
		"bytes", r.result.BytesWritten,
		"duration_ms", r.result.Elapsed.Milliseconds(),
		"bytes_per_second", int64(rate),
	)

	r.progress(PhaseFlushing)
	err := r.o.finalizer.Finalize(r.o.storage)

	var bootErr *BootError
	if err != nil && !(errors.As(err, &bootErr) && bootErr.Kind == KindRestartFailed) {
		return r.abort(err)
	}

	// The test boot is requested from here on, even if the restart failed.
	r.transition(evCommit)
	r.result.Elapsed = time.Since(r.start)
	if err != nil {
		r.log.Error("restart failed after commit", "error", err.Error())
		return r.result, err
	}
	r.progress(PhaseComplete)
	return r.result, nil
}

// reportProgress calls the progress callback if configured.
func (o *Orchestrator) reportProgress(progress Progress) {
	if o.config.ProgressCallback != nil {
		o.config.ProgressCallback(progress)
	}
}
