// Package download streams a firmware image from the endpoint named in a
// FOTA decision.
//
// Client.Open starts the transfer in its own goroutine and returns a channel
// of events. The channel carries at most one EventSize, then EventChunk
// values in arrival order, and ends with exactly one EventDone or EventError
// before it is closed:
//
//	events, err := client.Open(ctx, ep, 0)
//	for ev := range events {
//	    switch ev.Kind {
//	    case download.EventSize:
//	    case download.EventChunk:
//	    case download.EventDone:
//	    case download.EventError:
//	    }
//	}
//
// Cancelling ctx stops the producer; the channel is then closed without a
// terminal event.
//
// Supported schemes are coap (RFC 7959 block-wise GET over UDP) and
// http/https.
package download
