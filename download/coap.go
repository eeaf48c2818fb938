package download

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-coap"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// Block-wise transfer options (RFC 7959). go-coap does not know these and
// drops them when parsing, so responses are scanned with scanBlockOptions.
const (
	optionBlock2 coap.OptionID = 23
	optionSize2  coap.OptionID = 28
)

// blockSZX returns the SZX exponent for a block size.
func blockSZX(size int) (uint32, error) {
	for szx := uint32(0); szx <= 6; szx++ {
		if 1<<(szx+4) == size {
			return szx, nil
		}
	}
	return 0, fmt.Errorf("invalid block size %d", size)
}

// block is a decoded Block2 option value.
type block struct {
	Num  uint32
	More bool
	Size int
}

func (b block) value(szx uint32) uint32 {
	v := b.Num<<4 | szx
	if b.More {
		v |= 1 << 3
	}
	return v
}

func parseBlock(v uint32) block {
	return block{
		Num:  v >> 4,
		More: v&(1<<3) != 0,
		Size: 1 << ((v & 0x07) + 4),
	}
}

// blockOptions holds the block-wise options found in a response.
type blockOptions struct {
	Block2   block
	HasBlock bool
	Size2    uint32
	HasSize  bool
}

// scanBlockOptions walks the option list of a raw CoAP message and picks out
// Block2 and Size2.
func scanBlockOptions(datagram []byte) (blockOptions, error) {
	var opts blockOptions
	if len(datagram) < 4 {
		return opts, errors.New("message too short")
	}

	tkl := int(datagram[0] & 0x0F)
	if tkl > 8 {
		return opts, fmt.Errorf("invalid token length %d", tkl)
	}

	i := 4 + tkl
	if i > len(datagram) {
		return opts, errors.New("truncated token")
	}

	id := 0
	for i < len(datagram) && datagram[i] != 0xFF {
		header := datagram[i]
		i++

		var delta, length int
		var err error
		if delta, i, err = extendedNibble(int(header>>4), datagram, i); err != nil {
			return opts, err
		}
		if length, i, err = extendedNibble(int(header&0x0F), datagram, i); err != nil {
			return opts, err
		}
		if i+length > len(datagram) {
			return opts, errors.New("truncated option value")
		}

		id += delta
		value := datagram[i : i+length]
		i += length

		switch coap.OptionID(id) {
		case optionBlock2:
			if length > 3 {
				return opts, fmt.Errorf("block2 option is %d bytes", length)
			}
			opts.Block2 = parseBlock(decodeUint(value))
			opts.HasBlock = true
		case optionSize2:
			if length > 4 {
				return opts, fmt.Errorf("size2 option is %d bytes", length)
			}
			opts.Size2 = decodeUint(value)
			opts.HasSize = true
		}
	}
	return opts, nil
}

func extendedNibble(nibble int, buf []byte, i int) (int, int, error) {
	switch nibble {
	case 13:
		if i+1 > len(buf) {
			return 0, i, errors.New("truncated option header")
		}
		return int(buf[i]) + 13, i + 1, nil
	case 14:
		if i+2 > len(buf) {
			return 0, i, errors.New("truncated option header")
		}
		return int(binary.BigEndian.Uint16(buf[i:])) + 269, i + 2, nil
	case 15:
		return 0, i, errors.New("reserved option nibble")
	default:
		return nibble, i, nil
	}
}

func decodeUint(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}

func (c *Client) openCoAP(ctx context.Context, ep Endpoint, offset int64) (<-chan Event, error) {
	szx, err := blockSZX(c.config.BlockSize)
	if err != nil {
		return nil, err
	}
	if offset%int64(c.config.BlockSize) != 0 {
		return nil, fmt.Errorf("offset %d is not a multiple of the block size %d", offset, c.config.BlockSize)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", ep.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.Address(), err)
	}

	token := make([]byte, 4)
	if _, err := rand.Read(token); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("generate token: %w", err)
	}

	x := &blockTransfer{
		client: c,
		log:    logging.FromContext(ctx, c.config.Logger),
		conn:   conn,
		ep:     ep,
		szx:    szx,
		token:  token,
		offset: offset,
		msgID:  binary.BigEndian.Uint16(token[2:]),
		buf:    make([]byte, c.config.BlockSize+128),
	}

	x.log.Debug("coap download started",
		"endpoint", ep.String(),
		"block_size", c.config.BlockSize,
		"first_block", x.num(),
	)

	events := make(chan Event)
	go x.run(ctx, events)
	return events, nil
}

// blockTransfer is one running block-wise GET. It is owned by its goroutine.
// The block size may shrink when the server asks for smaller blocks, so the
// position is kept as a byte offset.
type blockTransfer struct {
	client *Client
	log    logging.Logger
	conn   net.Conn
	ep     Endpoint
	szx    uint32
	token  []byte
	offset int64
	msgID  uint16
	buf    []byte
}

func (x *blockTransfer) blockSize() int {
	return 1 << (x.szx + 4)
}

func (x *blockTransfer) num() uint32 {
	return uint32(x.offset / int64(x.blockSize()))
}

func (x *blockTransfer) nextMessageID() uint16 {
	x.msgID++
	return x.msgID
}

func (x *blockTransfer) run(ctx context.Context, events chan<- Event) {
	defer close(events)
	defer func() { _ = x.conn.Close() }()

	// Unblock a pending read when the consumer goes away.
	stop := context.AfterFunc(ctx, func() { _ = x.conn.SetReadDeadline(time.Now()) })
	defer stop()

	first := true
	for {
		resp, opts, err := x.fetch(ctx, first)
		if err != nil {
			if ctx.Err() == nil {
				emit(ctx, events, Event{Kind: EventError, Err: err})
			}
			return
		}

		if first && opts.HasSize {
			if !emit(ctx, events, Event{Kind: EventSize, Size: int64(opts.Size2)}) {
				return
			}
		}
		first = false

		more := opts.HasBlock && opts.Block2.More
		if more && len(resp.Payload) != x.blockSize() {
			emit(ctx, events, Event{Kind: EventError, Err: fmt.Errorf(
				"block %d carries %d bytes, block size is %d", x.num(), len(resp.Payload), x.blockSize())})
			return
		}

		if len(resp.Payload) > 0 {
			chunk := make([]byte, len(resp.Payload))
			copy(chunk, resp.Payload)
			if !emit(ctx, events, Event{Kind: EventChunk, Data: chunk}) {
				return
			}
		}

		// A server without block-wise support returns the whole
		// representation in one response.
		if !more {
			emit(ctx, events, Event{Kind: EventDone})
			return
		}
		x.offset += int64(len(resp.Payload))
	}
}

// fetch requests the current block, retransmitting with exponential backoff.
func (x *blockTransfer) fetch(ctx context.Context, first bool) (coap.Message, blockOptions, error) {
	req := coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.GET,
		MessageID: x.nextMessageID(),
		Token:     x.token,
	}
	if p := strings.Trim(x.ep.Path, "/"); p != "" {
		req.SetPathString(p)
	}
	num := x.num()
	req.AddOption(optionBlock2, block{Num: num}.value(x.szx))
	if first {
		req.AddOption(optionSize2, uint32(0))
	}

	datagram, err := req.MarshalBinary()
	if err != nil {
		return coap.Message{}, blockOptions{}, fmt.Errorf("marshal block %d request: %w", num, err)
	}

	timeout := x.client.config.AckTimeout
	for attempt := 0; attempt <= x.client.config.MaxRetransmit; attempt++ {
		if attempt > 0 {
			x.log.Debug("retransmitting block request", "block", num, "attempt", attempt)
		}
		if _, err := x.conn.Write(datagram); err != nil {
			return coap.Message{}, blockOptions{}, fmt.Errorf("send block %d request: %w", num, err)
		}

		resp, opts, err := x.await(ctx, req, time.Now().Add(timeout))
		if errors.Is(err, os.ErrDeadlineExceeded) {
			timeout *= 2
			continue
		}
		if err != nil {
			return coap.Message{}, blockOptions{}, err
		}
		return resp, opts, nil
	}

	return coap.Message{}, blockOptions{}, fmt.Errorf("block %d: no response after %d retransmissions", num, x.client.config.MaxRetransmit)
}

// await reads until the response to req arrives or deadline passes.
func (x *blockTransfer) await(ctx context.Context, req coap.Message, deadline time.Time) (coap.Message, blockOptions, error) {
	for {
		if err := ctx.Err(); err != nil {
			return coap.Message{}, blockOptions{}, err
		}
		if err := x.conn.SetReadDeadline(deadline); err != nil {
			return coap.Message{}, blockOptions{}, err
		}

		n, err := x.conn.Read(x.buf)
		if err != nil {
			return coap.Message{}, blockOptions{}, err
		}
		raw := x.buf[:n]

		resp, err := coap.ParseMessage(raw)
		if err != nil {
			x.log.Debug("dropping unparseable datagram", "error", err.Error())
			continue
		}
		if resp.Type == coap.Reset && resp.MessageID == req.MessageID {
			return coap.Message{}, blockOptions{}, fmt.Errorf("block %d request reset by server", x.num())
		}
		if resp.Type == coap.Acknowledgement && resp.Code == 0 && resp.MessageID == req.MessageID {
			// Separate response follows; the retransmission timer no longer applies.
			deadline = time.Now().Add(x.client.config.AckTimeout * time.Duration(1<<x.client.config.MaxRetransmit))
			continue
		}
		if string(resp.Token) != string(req.Token) {
			continue
		}
		if resp.Type == coap.Acknowledgement && resp.MessageID != req.MessageID {
			// Late answer to an earlier transmission of another block.
			continue
		}

		if resp.Type == coap.Confirmable {
			ack := coap.Message{Type: coap.Acknowledgement, MessageID: resp.MessageID}
			if b, err := ack.MarshalBinary(); err == nil {
				_, _ = x.conn.Write(b)
			}
		}

		if resp.Code>>5 != 2 {
			return coap.Message{}, blockOptions{}, fmt.Errorf("block %d: server responded %s", x.num(), resp.Code)
		}

		opts, err := scanBlockOptions(raw)
		if err != nil {
			return coap.Message{}, blockOptions{}, fmt.Errorf("block %d: %w", x.num(), err)
		}
		if opts.HasBlock {
			if err := x.adopt(opts.Block2); err != nil {
				return coap.Message{}, blockOptions{}, err
			}
		}
		return resp, opts, nil
	}
}

// adopt checks that b starts at the requested offset and switches to the
// server's block size when it is smaller than ours.
func (x *blockTransfer) adopt(b block) error {
	if b.Size > x.blockSize() {
		return fmt.Errorf("server block size %d exceeds requested %d", b.Size, x.blockSize())
	}
	if start := int64(b.Num) * int64(b.Size); start != x.offset {
		return fmt.Errorf("requested offset %d, got block %d of %d bytes", x.offset, b.Num, b.Size)
	}
	if b.Size < x.blockSize() {
		szx, err := blockSZX(b.Size)
		if err != nil {
			return err
		}
		x.log.Debug("server reduced block size", "from", x.blockSize(), "to", b.Size)
		x.szx = szx
	}
	return nil
}
