package conn

import (
	"context"
	"io"
	"time"

	"github.com/go-bolt/boltconn/internal/bolt/stream"
)

// transportWriter/transportReader adapt stream.Transport's context-bounded
// ReadExact/WriteAll to the plain io.Reader/io.Writer interfaces the chunk
// package's Encode/Decode functions expect, so the chunking codec itself
// stays free of any notion of deadlines or cancellation. A nonzero timeout
// bounds each individual Read/Write call in addition to whatever deadline
// ctx already carries.
type transportWriter struct {
	ctx     context.Context
	t       stream.Transport
	timeout time.Duration
}

func (w *transportWriter) Write(p []byte) (int, error) {
	ctx := w.ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.t.WriteAll(ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

type transportReader struct {
	ctx     context.Context
	t       stream.Transport
	timeout time.Duration
}

func (r *transportReader) Read(p []byte) (int, error) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.t.ReadExact(ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writer and reader bind the configured per-operation socket timeouts to the
// connection's transport for one request/response exchange.
func (c *Connection) writer(ctx context.Context) io.Writer {
	return &transportWriter{ctx: ctx, t: c.transport, timeout: c.cfg.SocketWriteTimeout}
}

func (c *Connection) reader(ctx context.Context) io.Reader {
	return &transportReader{ctx: ctx, t: c.transport, timeout: c.cfg.SocketReadTimeout}
}
