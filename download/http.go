package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

func (c *Client) openHTTP(ctx context.Context, ep Endpoint, offset int64) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.String(), nil)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ep, err)
	}

	want := http.StatusOK
	if offset > 0 {
		want = http.StatusPartialContent
	}
	if resp.StatusCode != want {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", ep, resp.Status)
	}

	logging.FromContext(ctx, c.config.Logger).Debug("http download started",
		"endpoint", ep.String(),
		"content_length", resp.ContentLength,
	)

	events := make(chan Event)
	go c.streamHTTP(ctx, resp, offset, events)
	return events, nil
}

func (c *Client) streamHTTP(ctx context.Context, resp *http.Response, offset int64, events chan<- Event) {
	defer close(events)
	defer func() { _ = resp.Body.Close() }()

	if resp.ContentLength >= 0 {
		if !emit(ctx, events, Event{Kind: EventSize, Size: offset + resp.ContentLength}) {
			return
		}
	}

	buf := make([]byte, c.config.ChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !emit(ctx, events, Event{Kind: EventChunk, Data: chunk}) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			emit(ctx, events, Event{Kind: EventDone})
			return
		}
		if err != nil {
			emit(ctx, events, Event{Kind: EventError, Err: fmt.Errorf("read body: %w", err)})
			return
		}
	}
}
