package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-coap"
	"github.com/looplab/fsm"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/tlv"
)

// State is a step of the version report exchange.
type State string

// Report states. Decoded, TimedOut, TransportError, MalformedReply and
// InvalidRequest are terminal and mutually exclusive.
const (
	StateBuilding       State = "building"
	StateSent           State = "sent"
	StateAwaitingReply  State = "awaiting_reply"
	StateDecoded        State = "decoded"
	StateTimedOut       State = "timed_out"
	StateTransportError State = "transport_error"
	StateMalformedReply State = "malformed_reply"
	StateInvalidRequest State = "invalid_request"
)

const (
	evSend      = "send"
	evAwait     = "await"
	evDecode    = "decode"
	evTimeout   = "timeout"
	evTransport = "transport_error"
	evReject    = "reject"
	evInvalid   = "invalid"
)

// Result is the outcome of one version report.
type Result struct {
	// State is the terminal state of the exchange
	State State

	// Decision is the decoded server reply; only set in StateDecoded
	Decision tlv.Decision

	// Token is the request token
	Token []byte

	// Polls is the number of expired polls while waiting for the reply
	Polls int
}

// Reporter reports the running firmware identity to the FOTA server.
//
// Reporter is safe for concurrent use; each Report call owns its own socket.
type Reporter struct {
	dial     Dialer
	address  string
	identity tlv.Identity
	config   Config
}

// New creates a Reporter that reports identity to the server at address.
//
// Example:
//
//	r := report.New(report.UDPDialer, "172.16.15.14:5683", identity,
//	    report.WithLogger(logger),
//	)
func New(dial Dialer, address string, identity tlv.Identity, opts ...Option) *Reporter {
	if dial == nil {
		panic("dialer cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Reporter{
		dial:     dial,
		address:  address,
		identity: identity,
		config:   cfg,
	}
}

func newMachine(log logging.Logger) *fsm.FSM {
	return fsm.NewFSM(
		string(StateBuilding),
		fsm.Events{
			{Name: evSend, Src: []string{string(StateBuilding)}, Dst: string(StateSent)},
			{Name: evAwait, Src: []string{string(StateSent)}, Dst: string(StateAwaitingReply)},
			{Name: evDecode, Src: []string{string(StateAwaitingReply)}, Dst: string(StateDecoded)},
			{Name: evTimeout, Src: []string{string(StateAwaitingReply)}, Dst: string(StateTimedOut)},
			{Name: evReject, Src: []string{string(StateAwaitingReply)}, Dst: string(StateMalformedReply)},
			{Name: evInvalid, Src: []string{string(StateBuilding)}, Dst: string(StateInvalidRequest)},
			{
				Name: evTransport,
				Src:  []string{string(StateBuilding), string(StateSent), string(StateAwaitingReply)},
				Dst:  string(StateTransportError),
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("report state", "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// exchange is the state of a single Report call.
type exchange struct {
	machine *fsm.FSM
	result  Result
	log     logging.Logger
}

// transition fires event on the machine. The caller's context is not passed
// on: a cancelled context must still be able to reach a terminal state.
func (x *exchange) transition(event string) {
	if err := x.machine.Event(context.Background(), event); err != nil {
		// Every transition fired here is declared above; failing means a bug.
		panic(fmt.Sprintf("report: %s from %s: %v", event, x.machine.Current(), err))
	}
	x.result.State = State(x.machine.Current())
}

func (x *exchange) fail(event string, kind ErrorKind, code int, err error) (Result, error) {
	x.transition(event)
	perr := &ProtocolError{Kind: kind, Code: code, Err: err}
	x.log.Error("version report failed", "state", string(x.result.State), "error", perr.Error())
	return x.result, perr
}

// Report runs one version report exchange and returns the server's decision.
//
// The returned Result always carries the terminal state. On failure the
// error is a *ProtocolError and Result.Decision is the zero value.
func (r *Reporter) Report(ctx context.Context) (Result, error) {
	log := logging.FromContext(ctx, r.config.Logger)
	x := &exchange{
		machine: newMachine(log),
		result:  Result{State: StateBuilding},
		log:     log,
	}

	// Building
	payload, err := tlv.EncodeIdentity(r.identity)
	if err != nil {
		return x.fail(evInvalid, KindInvalidRequest, 0, fmt.Errorf("encode report: %w", err))
	}

	req, err := buildRequest(r.config.Path, payload)
	if err != nil {
		return x.fail(evInvalid, KindInvalidRequest, 0, err)
	}
	x.result.Token = req.Token

	datagram, err := req.MarshalBinary()
	if err != nil {
		return x.fail(evInvalid, KindInvalidRequest, 0, fmt.Errorf("marshal request: %w", err))
	}

	conn, err := r.dial(ctx, r.address)
	if err != nil {
		return x.fail(evTransport, KindTransport, errorCode(err), fmt.Errorf("dial %s: %w", r.address, err))
	}
	defer func() { _ = conn.Close() }()

	// Sent
	log.Debug("sending version report",
		"address", r.address,
		"bytes", len(datagram),
		"path", r.config.Path,
	)
	if err := conn.Send(ctx, datagram); err != nil {
		return x.fail(evTransport, KindTransport, errorCode(err), fmt.Errorf("send: %w", err))
	}
	x.transition(evSend)

	// Awaiting reply
	x.transition(evAwait)
	reply, err := r.awaitReply(ctx, conn, req, &x.result, log)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			event := evTransport
			switch perr.Kind {
			case KindTimeout:
				event = evTimeout
			case KindMalformedReply, KindUnknownField:
				event = evReject
			}
			return x.fail(event, perr.Kind, perr.Code, perr.Err)
		}
		return x.fail(evTransport, KindTransport, errorCode(err), err)
	}

	decision, err := tlv.DecodeDecision(reply.Payload)
	if err != nil {
		kind := KindMalformedReply
		if tlv.IsUnknownField(err) {
			kind = KindUnknownField
		}
		return x.fail(evReject, kind, 0, fmt.Errorf("decode reply: %w", err))
	}

	x.transition(evDecode)
	x.result.Decision = decision

	log.Info("version report complete",
		"scheduled", decision.Scheduled,
		"host", decision.Host,
		"port", decision.Port,
		"path", decision.Path,
	)
	return x.result, nil
}

// awaitReply polls the transport until the response to req arrives or the
// reply timeout is exhausted. The timeout is measured on the wall clock, so
// stray datagrams cannot extend it.
func (r *Reporter) awaitReply(ctx context.Context, conn Transport, req coap.Message, res *Result, log logging.Logger) (coap.Message, error) {
	maxPolls := int(r.config.ReplyTimeout / r.config.PollInterval)
	deadline := time.Now().Add(r.config.ReplyTimeout)
	timedOut := func() error {
		return &ProtocolError{
			Kind: KindTimeout,
			Err:  fmt.Errorf("no reply after %s", r.config.ReplyTimeout),
		}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return coap.Message{}, timedOut()
		}
		wait := r.config.PollInterval
		if remaining < wait {
			wait = remaining
		}

		datagram, err := conn.Receive(ctx, wait)
		if errors.Is(err, ErrPollExpired) {
			res.Polls++
			if res.Polls > maxPolls {
				return coap.Message{}, timedOut()
			}
			continue
		}
		if err != nil {
			return coap.Message{}, &ProtocolError{Kind: KindTransport, Code: errorCode(err), Err: fmt.Errorf("receive: %w", err)}
		}

		msg, err := coap.ParseMessage(datagram)
		if err != nil {
			return coap.Message{}, &ProtocolError{Kind: KindMalformedReply, Err: fmt.Errorf("parse reply: %w", err)}
		}

		if isEmptyAck(msg, req) {
			log.Debug("request acknowledged, waiting for separate response")
			continue
		}
		if isReset(msg, req) {
			return coap.Message{}, &ProtocolError{Kind: KindTransport, Err: errors.New("request reset by server")}
		}
		if !bytes.Equal(msg.Token, req.Token) {
			log.Debug("ignoring datagram with foreign token", "message_id", msg.MessageID)
			continue
		}

		if msg.Type == coap.Confirmable {
			ack, err := ackFor(msg)
			if err == nil {
				err = conn.Send(ctx, ack)
			}
			if err != nil {
				log.Error("acknowledge separate response", "error", err.Error())
			}
		}

		if !isSuccess(msg.Code) {
			return coap.Message{}, &ProtocolError{
				Kind: KindMalformedReply,
				Code: int(msg.Code),
				Err:  fmt.Errorf("server responded %s", msg.Code),
			}
		}

		log.Debug("received reply", "bytes", len(datagram), "code", msg.Code.String())
		return msg, nil
	}
}
