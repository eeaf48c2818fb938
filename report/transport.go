package report

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// MaxDatagramSize is the receive buffer size for replies.
const MaxDatagramSize = 512

// Transport carries datagrams between the device and the FOTA server.
// One Transport is opened per report and closed when the report ends.
type Transport interface {
	// Send writes one datagram
	Send(ctx context.Context, datagram []byte) error

	// Receive waits at most wait for one datagram. It returns ErrPollExpired
	// when nothing arrived in time.
	Receive(ctx context.Context, wait time.Duration) ([]byte, error)

	// Close releases the underlying socket
	Close() error
}

// Dialer opens a Transport to address.
type Dialer func(ctx context.Context, address string) (Transport, error)

// UDPDialer opens a connected UDP socket to address.
func UDPDialer(ctx context.Context, address string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, err
	}
	return &udpTransport{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

type udpTransport struct {
	conn net.Conn
	buf  []byte
}

func (u *udpTransport) Send(ctx context.Context, datagram []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := u.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	n, err := u.conn.Write(datagram)
	if err != nil {
		return err
	}
	if n != len(datagram) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(datagram))
	}
	return nil
}

func (u *udpTransport) Receive(ctx context.Context, wait time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := u.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, err
	}

	n, err := u.conn.Read(u.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrPollExpired
		}
		return nil, err
	}

	datagram := make([]byte, n)
	copy(datagram, u.buf[:n])
	return datagram, nil
}

func (u *udpTransport) Close() error {
	return u.conn.Close()
}
