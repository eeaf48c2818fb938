package download

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dustin/go-coap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

func TestBlockSZX(t *testing.T) {
	for size, want := range map[int]uint32{16: 0, 32: 1, 64: 2, 128: 3, 256: 4, 512: 5, 1024: 6} {
		got, err := blockSZX(size)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, size := range []int{0, 8, 100, 2048} {
		_, err := blockSZX(size)
		assert.Error(t, err)
	}
}

func TestBlockValue(t *testing.T) {
	b := block{Num: 3, More: true}
	v := b.value(4)
	assert.Equal(t, uint32(3<<4|1<<3|4), v)
	assert.Equal(t, block{Num: 3, More: true, Size: 256}, parseBlock(v))
	assert.Equal(t, block{Num: 0, More: false, Size: 16}, parseBlock(0))
}

func TestScanBlockOptions(t *testing.T) {
	m := coap.Message{
		Type:      coap.Acknowledgement,
		Code:      coap.Content,
		MessageID: 7,
		Token:     []byte{1, 2, 3, 4},
		Payload:   []byte("payload"),
	}
	m.SetPathString("fw")
	m.AddOption(optionBlock2, block{Num: 1000, More: true}.value(4))
	m.AddOption(optionSize2, uint32(123456))
	m.AddOption(coap.OptionID(60), uint32(5))
	raw, err := m.MarshalBinary()
	require.NoError(t, err)

	opts, err := scanBlockOptions(raw)
	require.NoError(t, err)
	assert.True(t, opts.HasBlock)
	assert.Equal(t, block{Num: 1000, More: true, Size: 256}, opts.Block2)
	assert.True(t, opts.HasSize)
	assert.Equal(t, uint32(123456), opts.Size2)
}

func TestScanBlockOptionsMalformed(t *testing.T) {
	tests := map[string][]byte{
		"short":           {0x40, 0x01},
		"bad token len":   {0x49, 0x45, 0x00, 0x01},
		"truncated token": {0x44, 0x45, 0x00, 0x01, 0xAA},
		"truncated value": {0x40, 0x45, 0x00, 0x01, 0xD3, 0x0A, 0x01},
		"reserved delta":  {0x40, 0x45, 0x00, 0x01, 0xF1, 0x00},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := scanBlockOptions(raw)
			assert.Error(t, err)
		})
	}
}

// blockServer serves img block-wise over UDP. drop makes it ignore the
// first n requests. A non-zero maxBlock caps the block size the server
// answers with, as a constrained server would.
type blockServer struct {
	pc       net.PacketConn
	img      []byte
	drop     int32
	maxBlock int
	requests int32
}

func newBlockServer(t *testing.T, img []byte, drop int32) *blockServer {
	return startBlockServer(t, &blockServer{img: img, drop: drop})
}

func newCappedBlockServer(t *testing.T, img []byte, maxBlock int) *blockServer {
	return startBlockServer(t, &blockServer{img: img, maxBlock: maxBlock})
}

func startBlockServer(t *testing.T, s *blockServer) *blockServer {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	s.pc = pc
	go s.serve()
	t.Cleanup(func() { _ = pc.Close() })
	return s
}

func (s *blockServer) endpoint(t *testing.T) Endpoint {
	addr := s.pc.LocalAddr().(*net.UDPAddr)
	return Endpoint{Scheme: SchemeCoAP, Host: "127.0.0.1", Port: uint16(addr.Port), Path: "/fw"}
}

func (s *blockServer) serve() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := s.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		atomic.AddInt32(&s.requests, 1)
		if atomic.AddInt32(&s.drop, -1) >= 0 {
			continue
		}

		raw := buf[:n]
		req, err := coap.ParseMessage(raw)
		if err != nil || req.PathString() != "fw" {
			continue
		}
		opts, err := scanBlockOptions(raw)
		if err != nil || !opts.HasBlock {
			continue
		}

		size := opts.Block2.Size
		start := int(opts.Block2.Num) * size
		if s.maxBlock > 0 && size > s.maxBlock {
			size = s.maxBlock
		}
		num := uint32(start / size)
		end := start + size
		if end > len(s.img) {
			end = len(s.img)
		}
		szx, _ := blockSZX(size)

		resp := coap.Message{
			Type:      coap.Acknowledgement,
			Code:      coap.Content,
			MessageID: req.MessageID,
			Token:     req.Token,
			Payload:   s.img[start:end],
		}
		resp.AddOption(optionBlock2, block{Num: num, More: end < len(s.img)}.value(szx))
		if opts.HasSize {
			resp.AddOption(optionSize2, uint32(len(s.img)))
		}
		b, err := resp.MarshalBinary()
		if err != nil {
			continue
		}
		_, _ = s.pc.WriteTo(b, addr)
	}
}

func TestCoAPDownload(t *testing.T) {
	img := testImage(600)
	srv := newBlockServer(t, img, 0)

	events, err := New().Open(context.Background(), srv.endpoint(t), 0)
	require.NoError(t, err)

	size, data, last := collect(t, events)
	assert.Equal(t, int64(600), size)
	assert.Equal(t, img, data)
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.requests))
}

func TestCoAPDownloadRetransmits(t *testing.T) {
	img := testImage(100)
	srv := newBlockServer(t, img, 2)

	client := New(WithAckTimeout(20*time.Millisecond), WithBlockSize(64))
	events, err := client.Open(context.Background(), srv.endpoint(t), 0)
	require.NoError(t, err)

	_, data, last := collect(t, events)
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, img, data)
}

func TestCoAPDownloadGivesUp(t *testing.T) {
	srv := newBlockServer(t, testImage(10), 1000)

	client := New(WithAckTimeout(5*time.Millisecond), WithMaxRetransmit(2))
	events, err := client.Open(context.Background(), srv.endpoint(t), 0)
	require.NoError(t, err)

	_, data, last := collect(t, events)
	assert.Empty(t, data)
	assert.Equal(t, EventError, last.Kind)
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.requests))
}

func TestCoAPDownloadUnalignedOffset(t *testing.T) {
	srv := newBlockServer(t, testImage(10), 0)
	_, err := New().Open(context.Background(), srv.endpoint(t), 100)
	assert.Error(t, err)
}

func TestCoAPDownloadAdoptsServerBlockSize(t *testing.T) {
	img := testImage(600)
	srv := newCappedBlockServer(t, img, 64)

	events, err := New(WithBlockSize(256)).Open(context.Background(), srv.endpoint(t), 0)
	require.NoError(t, err)

	size, data, last := collect(t, events)
	assert.Equal(t, EventDone, last.Kind, "transfer failed: %v", last.Err)
	assert.Equal(t, int64(600), size)
	assert.Equal(t, img, data)
	// One request per 64-byte block once the smaller size is adopted.
	assert.Equal(t, int32(10), atomic.LoadInt32(&srv.requests))
}

func TestCoAPDownloadRejectsMisplacedBlock(t *testing.T) {
	x := &blockTransfer{client: New(), log: logging.Nop(), szx: 2, offset: 128}

	assert.NoError(t, x.adopt(block{Num: 2, Size: 64}))
	assert.Error(t, x.adopt(block{Num: 3, Size: 64}))
	assert.Error(t, x.adopt(block{Num: 0, Size: 128}), "server must not grow the block size")

	require.NoError(t, x.adopt(block{Num: 4, Size: 32}))
	assert.Equal(t, 32, x.blockSize())
	assert.Equal(t, uint32(4), x.num())
}
