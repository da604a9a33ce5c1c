// Package asyncconn is the cooperative-task twin of package conn: the same
// protocol core driven from goroutines instead of the caller's own one. It
// duplicates no protocol logic: every method spawns exactly one goroutine
// that calls straight through to the matching *conn.Connection method and
// reports the outcome on a Future the caller can await.
//
// The ASYNC_* lifecycle states exist only for log correlation: they are not
// a second state machine. stateLabel below is the only place they appear,
// translating the shared *conn.Connection's real State into its
// ASYNC_-prefixed name for this surface's log lines.
package asyncconn

import (
	"context"
	"sync"

	"github.com/go-bolt/boltconn/internal/bolt/conn"
	"github.com/go-bolt/boltconn/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Future is a channel-backed lazy completion handle for a single async
// operation's result.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	result T
	err    error
	cancel context.CancelFunc
}

func newFuture[T any](cancel context.CancelFunc) *Future[T] {
	return &Future[T]{done: make(chan struct{}), cancel: cancel}
}

func (f *Future[T]) complete(result T, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the operation completes or ctx is done first. In the
// latter case it cancels the operation — cancellation of an in-flight
// operation transitions the connection to DEFUNCT, and it is not safe to
// reuse after — and returns ctx.Err().
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		f.Cancel()
		<-f.done
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether the operation has completed, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancel aborts the in-flight operation if it has not already completed.
// Safe to call more than once or after completion (a no-op in that case).
func (f *Future[T]) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}

// stateLabel reports s under its ASYNC_ prefixed name, for log lines emitted
// from this package only. The asynchronous variant states exist in parallel
// with no additional transitions of their own — they mirror their
// synchronous counterparts purely for debugging, so this is just a naming
// mirror, not a second enum.
func stateLabel(s conn.State) string { return "ASYNC_" + s.String() }

// AsyncConnection wraps a *conn.Connection so every operation returns a
// Future instead of blocking. Requests must stay strictly FIFO with no
// multiplexing, so opLock serializes the goroutines this package spawns so
// two concurrently-submitted operations never race the shared Connection,
// mirroring the single-owner-at-a-time discipline the sync surface gets for
// free from being called on one goroutine.
type AsyncConnection struct {
	opLock sync.Mutex
	conn   *conn.Connection
}

// Connection returns the underlying synchronous Connection, e.g. for
// accessors like IsReady/NegotiatedVersion that don't need a future.
func (a *AsyncConnection) Connection() *conn.Connection { return a.conn }

// EstablishAsync dials, completes the Bolt handshake, and authenticates on a
// spawned goroutine, returning a Future that resolves to a ready
// *AsyncConnection.
func EstablishAsync(ctx context.Context, cfg conn.Config) *Future[*AsyncConnection] {
	ctx, cancel := context.WithCancel(ctx)
	f := newFuture[*AsyncConnection](cancel)
	go func() {
		defer cancel()
		c, err := conn.Establish(ctx, cfg)
		if err != nil {
			f.complete(nil, err)
			return
		}
		f.complete(&AsyncConnection{conn: c}, nil)
	}()
	return f
}

// runAsync is the shared spawn-one-goroutine-call-through pattern every
// method below uses.
func runAsync[T any](ctx context.Context, a *AsyncConnection, op func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := newFuture[T](cancel)
	go func() {
		defer cancel()
		a.opLock.Lock()
		defer a.opLock.Unlock()
		result, err := op(ctx)
		logger.Debug("async operation complete", "state", stateLabel(a.conn.State()), "error", err)
		f.complete(result, err)
	}()
	return f
}

// RunAsync sends RUN and returns a Future for its own SUCCESS/FAILURE
// acknowledgment, without pulling any records.
func (a *AsyncConnection) RunAsync(ctx context.Context, query string, params, extra map[string]any) *Future[conn.SuccessSummary] {
	return runAsync(ctx, a, func(ctx context.Context) (conn.SuccessSummary, error) {
		return a.conn.Run(ctx, query, params, extra)
	})
}

// PullAsync sends PULL and returns a Future for the terminal summary, having
// invoked handle once per RECORD from the spawned goroutine (so handle runs
// off the caller's own goroutine — it must not assume otherwise).
func (a *AsyncConnection) PullAsync(ctx context.Context, n, qid int64, handle conn.RecordHandler) *Future[conn.SuccessSummary] {
	return runAsync(ctx, a, func(ctx context.Context) (conn.SuccessSummary, error) {
		return a.conn.Pull(ctx, n, qid, handle)
	})
}

// RunAndPullAllAsync composes RunAsync and PullAsync as a single future, the
// async twin of (*conn.Connection).RunAndPullAll.
func (a *AsyncConnection) RunAndPullAllAsync(ctx context.Context, query string, params, runExtra map[string]any, handle conn.RecordHandler) *Future[conn.SuccessSummary] {
	return runAsync(ctx, a, func(ctx context.Context) (conn.SuccessSummary, error) {
		return a.conn.RunAndPullAll(ctx, query, params, runExtra, handle)
	})
}

// ResetAsync sends RESET and returns a Future for its completion.
func (a *AsyncConnection) ResetAsync(ctx context.Context) *Future[struct{}] {
	return runAsync(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.Reset(ctx)
	})
}

// PingAsync verifies liveness via RESET and returns a Future for its
// completion.
func (a *AsyncConnection) PingAsync(ctx context.Context) *Future[struct{}] {
	return runAsync(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.Ping(ctx)
	})
}

// NoopAsync writes a bare NOOP chunk and returns a Future for its
// completion.
func (a *AsyncConnection) NoopAsync(ctx context.Context) *Future[struct{}] {
	return runAsync(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.Noop(ctx)
	})
}

// LogoffAsync sends LOGOFF (protocol >= 5.1 only) and returns a Future for
// its completion.
func (a *AsyncConnection) LogoffAsync(ctx context.Context) *Future[struct{}] {
	return runAsync(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.Logoff(ctx)
	})
}

// TerminateAsync sends GOODBYE best-effort (when sendGoodbye is set) and
// closes the transport, returning a Future for completion. Unlike the other
// operations it does not wait on opLock before starting the close
// (termination must proceed even if another operation is mid-flight and
// will itself observe DEFUNCT).
func (a *AsyncConnection) TerminateAsync(ctx context.Context, sendGoodbye bool) *Future[struct{}] {
	ctx, cancel := context.WithCancel(ctx)
	f := newFuture[struct{}](cancel)
	go func() {
		defer cancel()
		err := a.conn.Terminate(ctx, sendGoodbye)
		f.complete(struct{}{}, err)
	}()
	return f
}

// EstablishMany runs EstablishAsync for every cfg concurrently and waits
// for all of them. Returns one *AsyncConnection (or nil) per input config,
// in the same order, plus the first error encountered. The attempts share
// one context that is cancelled on the first error, so attempts still in
// flight at that point are abandoned and their slots stay nil; the errors
// of the other failed attempts are not reported.
func EstablishMany(ctx context.Context, cfgs []conn.Config) ([]*AsyncConnection, error) {
	results := make([]*AsyncConnection, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		i, cfg := i, cfg
		g.Go(func() error {
			c, err := EstablishAsync(gctx, cfg).Wait(gctx)
			if err != nil {
				return err
			}
			results[i] = c
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
