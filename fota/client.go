package fota

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/report"
	"github.com/lab5e/nRF9160-barebone-fota/tlv"
	"github.com/lab5e/nRF9160-barebone-fota/transfer"
)

// ErrCycleInProgress is returned by Run while another cycle is running.
var ErrCycleInProgress = errors.New("update cycle already in progress")

// Outcome is the result of an update cycle.
type Outcome int

const (
	// OutcomeFailed means the cycle stopped with an error
	OutcomeFailed Outcome = iota

	// OutcomeNoUpdate means the server did not schedule an update
	OutcomeNoUpdate

	// OutcomeCommitted means a new image is waiting for its test boot
	OutcomeCommitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeNoUpdate:
		return "no update"
	case OutcomeCommitted:
		return "committed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Reporter sends the version report. *report.Reporter implements it.
type Reporter interface {
	Report(ctx context.Context) (report.Result, error)
}

// Transfer downloads and commits a scheduled image.
// *transfer.Orchestrator implements it.
type Transfer interface {
	Run(ctx context.Context, decision tlv.Decision) (transfer.Result, error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a logger for cycle events.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client runs update cycles.
type Client struct {
	reporter Reporter
	transfer Transfer
	logger   logging.Logger
	running  atomic.Bool
	newID    func() string
}

// New creates a Client. Panics if reporter or t is nil.
func New(reporter Reporter, t Transfer, opts ...Option) *Client {
	if reporter == nil {
		panic("reporter cannot be nil")
	}
	if t == nil {
		panic("transfer cannot be nil")
	}

	c := &Client{
		reporter: reporter,
		transfer: t,
		logger:   logging.Nop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one update cycle: report the running firmware, and if an
// update is scheduled, transfer and commit it.
//
// The transfer is never started when the report fails or when no update
// is scheduled.
func (c *Client) Run(ctx context.Context) (Outcome, error) {
	if !c.running.CompareAndSwap(false, true) {
		return OutcomeFailed, ErrCycleInProgress
	}
	defer c.running.Store(false)

	log := logging.With(c.logger, "cycle_id", c.newID())
	ctx = logging.NewContext(ctx, log)
	start := time.Now()
	log.Info("update cycle started")

	rep, err := c.reporter.Report(ctx)
	if err != nil {
		log.Error("version report failed", "state", string(rep.State), "error", err.Error())
		return OutcomeFailed, fmt.Errorf("report: %w", err)
	}

	decision := rep.Decision
	if !decision.Scheduled {
		log.Info("no update scheduled", "polls", rep.Polls)
		return OutcomeNoUpdate, nil
	}

	log.Info("update scheduled",
		"host", decision.Host,
		"port", decision.Port,
		"path", decision.Path,
	)

	res, err := c.transfer.Run(ctx, decision)
	if err != nil {
		log.Error("update failed",
			"state", string(res.State),
			"bytes_written", res.BytesWritten,
			"error", err.Error(),
		)
		return OutcomeFailed, fmt.Errorf("transfer: %w", err)
	}

	log.Info("update committed",
		"bytes", res.BytesWritten,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return OutcomeCommitted, nil
}
