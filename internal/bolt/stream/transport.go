// Package stream provides the physical transport abstraction the connection
// state machine dials through: plaintext TCP or TLS, each wrapped so every
// read and write is bounded by the caller's context. The context's deadline
// is pushed down to net.Conn's SetReadDeadline/SetWriteDeadline, and a
// select additionally races the blocking call against ctx.Done, closing the
// socket on cancellation so a hung read on a half-open peer never outlives
// its budget.
package stream

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// Transport is the capability both the sync and async connection surfaces
// build on: a byte stream plus context-bounded read/write primitives.
type Transport interface {
	ReadExact(ctx context.Context, buf []byte) error
	WriteAll(ctx context.Context, buf []byte) error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// connTransport adapts a net.Conn (plain or TLS) to Transport, applying
// ctx's deadline to each I/O call and aborting it by closing the socket if
// ctx is cancelled mid-call.
type connTransport struct {
	conn net.Conn
}

// NewPlainTransport wraps an already-established net.Conn with no TLS.
func NewPlainTransport(conn net.Conn) Transport {
	return &connTransport{conn: conn}
}

// NewTLSTransport wraps conn in a TLS client connection per cfg and performs
// the handshake, bounded by ctx (HandshakeContext honors its cancellation
// and deadline natively).
func NewTLSTransport(ctx context.Context, conn net.Conn, cfg *tls.Config) (Transport, error) {
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, boerrs.NewHandshakeError(boerrs.KindHandshakeFailed, "stream.tls_handshake", err)
	}
	return &connTransport{conn: tc}, nil
}

func (t *connTransport) ReadExact(ctx context.Context, buf []byte) error {
	return raceIO(ctx, t.conn, func(deadline time.Time) error {
		if !deadline.IsZero() {
			if err := t.conn.SetReadDeadline(deadline); err != nil {
				return err
			}
		}
		_, err := readFull(t.conn, buf)
		return err
	})
}

func (t *connTransport) WriteAll(ctx context.Context, buf []byte) error {
	return raceIO(ctx, t.conn, func(deadline time.Time) error {
		if !deadline.IsZero() {
			if err := t.conn.SetWriteDeadline(deadline); err != nil {
				return err
			}
		}
		_, err := writeFull(t.conn, buf)
		return err
	})
}

func (t *connTransport) Close() error         { return t.conn.Close() }
func (t *connTransport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *connTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// raceIO runs op, which performs the actual blocking call after first
// applying ctx's deadline to conn, and additionally aborts by closing conn
// if ctx is cancelled before op returns: the connection is unusable after
// that point regardless, since any network error moves the connection
// toward DEFUNCT.
func raceIO(ctx context.Context, conn net.Conn, op func(deadline time.Time) error) error {
	deadline, _ := ctx.Deadline()

	done := make(chan error, 1)
	go func() { done <- op(deadline) }()

	select {
	case err := <-done:
		if err != nil {
			if boerrs.IsTimeout(err) {
				return boerrs.NewNetworkTimeout("stream.io", err)
			}
			return boerrs.NewNetworkError("stream.io", err)
		}
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return boerrs.NewNetworkTimeout("stream.io", ctx.Err())
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
