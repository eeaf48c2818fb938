package download

import (
	"context"
	"fmt"
)

// Client opens firmware downloads.
type Client struct {
	config Config
}

// New creates a download Client.
//
// Example:
//
//	client := download.New(download.WithBlockSize(512))
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{config: cfg}
}

// Open starts downloading ep from byte offset. Errors that prevent the
// download from starting are returned directly; later failures arrive as
// EventError.
func (c *Client) Open(ctx context.Context, ep Endpoint, offset int64) (<-chan Event, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}

	switch ep.Scheme {
	case SchemeCoAP:
		return c.openCoAP(ctx, ep, offset)
	case SchemeHTTP, SchemeHTTPS:
		return c.openHTTP(ctx, ep, offset)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", ep.Scheme)
	}
}

// emit delivers ev unless ctx is cancelled first.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
