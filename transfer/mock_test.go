package transfer

import (
	"context"
	"sync"

	"github.com/lab5e/nRF9160-barebone-fota/download"
)

// MockSource replays a fixed list of download events.
type MockSource struct {
	events  []download.Event
	openErr error

	// hold keeps the channel open after the events until ctx is cancelled
	hold bool

	mu        sync.Mutex
	endpoints []download.Endpoint
	stopped   chan struct{}
}

func NewMockSource(events ...download.Event) *MockSource {
	return &MockSource{events: events, stopped: make(chan struct{})}
}

func (m *MockSource) Open(ctx context.Context, ep download.Endpoint, offset int64) (<-chan download.Event, error) {
	m.mu.Lock()
	m.endpoints = append(m.endpoints, ep)
	m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}

	ch := make(chan download.Event)
	go func() {
		defer close(ch)
		defer close(m.stopped)
		for _, ev := range m.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if m.hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (m *MockSource) Opened() []download.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]download.Endpoint(nil), m.endpoints...)
}

// MockStorage records every call made to the region.
type MockStorage struct {
	capacity int64
	eraseErr error
	writeErr error
	flushErr error

	// failAfter makes the n-th non-final append fail with writeErr
	failAfter int

	erased  int
	appends [][]byte
	finals  int
	calls   []string
}

func NewMockStorage(capacity int64) *MockStorage {
	return &MockStorage{capacity: capacity}
}

func (m *MockStorage) Erase(ctx context.Context) error {
	m.calls = append(m.calls, "erase")
	if m.eraseErr != nil {
		return m.eraseErr
	}
	m.erased++
	return nil
}

func (m *MockStorage) Append(data []byte, final bool) error {
	if final {
		m.calls = append(m.calls, "flush")
		m.finals++
		if len(data) > 0 {
			m.appends = append(m.appends, append([]byte(nil), data...))
		}
		return m.flushErr
	}
	m.calls = append(m.calls, "append")
	if m.writeErr != nil && len(m.appends)+1 >= m.failAfter {
		return m.writeErr
	}
	m.appends = append(m.appends, append([]byte(nil), data...))
	return nil
}

func (m *MockStorage) Capacity() int64 {
	return m.capacity
}

func (m *MockStorage) Image() []byte {
	var out []byte
	for _, a := range m.appends {
		out = append(out, a...)
	}
	return out
}

// MockBoot counts test boot requests.
type MockBoot struct {
	err      error
	requests int
	log      *[]string
}

func (m *MockBoot) RequestTestBoot() error {
	if m.log != nil {
		*m.log = append(*m.log, "test_boot")
	}
	if m.err != nil {
		return m.err
	}
	m.requests++
	return nil
}

// MockRestarter counts restarts.
type MockRestarter struct {
	err      error
	restarts int
	log      *[]string
}

func (m *MockRestarter) Restart() error {
	if m.log != nil {
		*m.log = append(*m.log, "restart")
	}
	m.restarts++
	return m.err
}

// codeError carries a numeric code the way driver errors do.
type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string { return e.msg }
func (e codeError) Code() int     { return e.code }

func chunk(b string) download.Event {
	return download.Event{Kind: download.EventChunk, Data: []byte(b)}
}

func size(n int64) download.Event {
	return download.Event{Kind: download.EventSize, Size: n}
}

func done() download.Event {
	return download.Event{Kind: download.EventDone}
}
