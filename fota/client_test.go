package fota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/report"
	"github.com/lab5e/nRF9160-barebone-fota/tlv"
	"github.com/lab5e/nRF9160-barebone-fota/transfer"
)

type MockReporter struct {
	result report.Result
	err    error

	// block holds Report until closed
	block chan struct{}
}

func (m *MockReporter) Report(ctx context.Context) (report.Result, error) {
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

type MockTransfer struct {
	result    transfer.Result
	err       error
	decisions []tlv.Decision
}

func (m *MockTransfer) Run(ctx context.Context, d tlv.Decision) (transfer.Result, error) {
	m.decisions = append(m.decisions, d)
	return m.result, m.err
}

type entry struct {
	level string
	msg   string
	kv    []interface{}
}

type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recorder) add(level, msg string, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level, msg, kv})
}

func (r *recorder) Debug(msg string, kv ...interface{}) { r.add("debug", msg, kv) }
func (r *recorder) Info(msg string, kv ...interface{})  { r.add("info", msg, kv) }
func (r *recorder) Error(msg string, kv ...interface{}) { r.add("error", msg, kv) }

func decoded(d tlv.Decision) report.Result {
	return report.Result{State: report.StateDecoded, Decision: d}
}

var update = tlv.Decision{Host: "172.16.15.14", Port: 5683, Path: "fw", Scheduled: true}

func TestRunNoUpdate(t *testing.T) {
	rep := &MockReporter{result: decoded(tlv.Decision{})}
	tr := &MockTransfer{}

	outcome, err := New(rep, tr).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoUpdate, outcome)
	assert.Empty(t, tr.decisions)
}

func TestRunCommitted(t *testing.T) {
	rep := &MockReporter{result: decoded(update)}
	tr := &MockTransfer{result: transfer.Result{State: transfer.StateCommitted, BytesWritten: 9}}

	outcome, err := New(rep, tr).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Equal(t, []tlv.Decision{update}, tr.decisions)
}

func TestRunReportFailure(t *testing.T) {
	rep := &MockReporter{
		result: report.Result{State: report.StateTimedOut},
		err:    &report.ProtocolError{Kind: report.KindTimeout},
	}
	tr := &MockTransfer{}

	outcome, err := New(rep, tr).Run(context.Background())
	assert.ErrorIs(t, err, report.ErrTimeout)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, tr.decisions)
}

func TestRunTransferFailure(t *testing.T) {
	rep := &MockReporter{result: decoded(update)}
	tr := &MockTransfer{
		result: transfer.Result{State: transfer.StateAborted},
		err:    &transfer.StorageError{Kind: transfer.KindCapacityExceeded, Size: 10, Capacity: 5},
	}

	outcome, err := New(rep, tr).Run(context.Background())
	assert.ErrorIs(t, err, transfer.ErrImageTooLarge)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRunLogsCycleID(t *testing.T) {
	rec := &recorder{}
	rep := &MockReporter{result: decoded(tlv.Decision{})}
	c := New(rep, &MockTransfer{}, WithLogger(rec))

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, e := range rec.entries {
		require.GreaterOrEqual(t, len(e.kv), 2, e.msg)
		assert.Equal(t, "cycle_id", e.kv[0])
		id := fmt.Sprint(e.kv[1])
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		ids[id] = true
	}
	assert.Len(t, ids, 2)
}

type loggingTransfer struct{}

func (loggingTransfer) Run(ctx context.Context, _ tlv.Decision) (transfer.Result, error) {
	logging.FromContext(ctx, logging.Nop()).Info("transfer entry")
	return transfer.Result{State: transfer.StateCommitted}, nil
}

type loggingReporter struct{}

func (loggingReporter) Report(ctx context.Context) (report.Result, error) {
	logging.FromContext(ctx, logging.Nop()).Info("report entry")
	return decoded(update), nil
}

func TestRunPassesCycleLoggerDown(t *testing.T) {
	rec := &recorder{}
	c := New(loggingReporter{}, loggingTransfer{}, WithLogger(rec))
	c.newID = func() string { return "cycle-1" }

	outcome, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)

	seen := map[string]bool{}
	for _, e := range rec.entries {
		require.GreaterOrEqual(t, len(e.kv), 2, e.msg)
		assert.Equal(t, []interface{}{"cycle_id", "cycle-1"}, e.kv[:2], e.msg)
		seen[e.msg] = true
	}
	assert.True(t, seen["report entry"])
	assert.True(t, seen["transfer entry"])
}

func TestRunRejectsConcurrentCycle(t *testing.T) {
	rep := &MockReporter{result: decoded(tlv.Decision{}), block: make(chan struct{})}
	c := New(rep, &MockTransfer{})

	first := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		first <- err
	}()

	require.Eventually(t, c.running.Load, 2*time.Second, 5*time.Millisecond)

	outcome, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Equal(t, OutcomeFailed, outcome)

	close(rep.block)
	assert.NoError(t, <-first)
}

func TestNewPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { New(nil, &MockTransfer{}) })
	assert.Panics(t, func() { New(&MockReporter{}, nil) })
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "committed", OutcomeCommitted.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrCycleInProgress), ErrCycleInProgress))
}
