// Package report implements the device side of the simple FOTA version report.
//
// # Overview
//
// A Reporter sends the device identity to the FOTA server in a single
// confirmable CoAP POST and waits for the server's decision:
//
//	building -> sent -> awaiting_reply -> decoded
//	                                   -> timed_out
//	                                   -> transport_error
//	                                   -> malformed_reply
//	building -> invalid_request
//
// Exactly one terminal state is reached per Report call. The transport is
// opened for the exchange and closed on every exit path.
//
// # Basic Usage
//
//	r := report.New(report.UDPDialer, "fota.example.com:5683", identity)
//	res, err := r.Report(ctx)
//	if err != nil {
//	    return err
//	}
//	if res.Decision.Scheduled {
//	    // start the transfer
//	}
//
// # Timeouts
//
// The reply is polled every PollInterval (default 500 ms) and abandoned after
// ReplyTimeout (default 60 s) of wall-clock time, however many unrelated
// datagrams arrive meanwhile. There is no retry here; retrying the whole
// cycle is the caller's decision.
//
// # Error Handling
//
// Failures are reported as *ProtocolError. Use errors.Is with ErrTimeout,
// ErrTransport, ErrMalformedReply, ErrUnknownField or ErrInvalidRequest to
// branch on the kind.
package report
