package conn

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/go-bolt/boltconn/internal/bolt/chunk"
	"github.com/go-bolt/boltconn/internal/bolt/packstream"
	"github.com/go-bolt/boltconn/internal/bolt/wire"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal single-connection Bolt server used to exercise
// Establish/Run/Reset/Terminate without a real database, driving the
// implementation against an in-process net.Listener rather than a mocked
// net.Conn.
type fakeServer struct {
	ln   net.Listener
	t    *testing.T
	next func(conn net.Conn)
}

func newFakeServer(t *testing.T) *fakeServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeServer{ln: ln, t: t}
}

func (f *fakeServer) addr() string { return f.ln.Addr().String() }

func (f *fakeServer) serveOnce(handler func(conn net.Conn)) {
	go func() {
		c, err := f.ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()
}

func (f *fakeServer) close() { _ = f.ln.Close() }

func readHandshakeRequest(t *testing.T, c net.Conn) {
	t.Helper()
	buf := make([]byte, wire.HandshakeRequestSize)
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
}

func writeHandshakeReply(t *testing.T, c net.Conn, v wire.Version) {
	t.Helper()
	reply := []byte{0, 0, v.Major, v.Minor}
	_, err := c.Write(reply)
	require.NoError(t, err)
}

func readOneMessage(t *testing.T, c net.Conn) []byte {
	t.Helper()
	msg, err := chunk.Decode(c)
	require.NoError(t, err)
	return msg
}

func writeSuccess(t *testing.T, c net.Conn, fields map[string]any) {
	t.Helper()
	m, err := packstream.EncodeMap(fields)
	require.NoError(t, err)
	body := packstream.EncodeStructure(packstream.TagSuccess, m)
	require.NoError(t, chunk.Encode(c, body))
}

func TestEstablishAuthenticateAndTerminate(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	srv.serveOnce(func(c net.Conn) {
		readHandshakeRequest(t, c)
		writeHandshakeReply(t, c, wire.Version{Major: 5, Minor: 4})

		readOneMessage(t, c) // HELLO
		writeSuccess(t, c, map[string]any{"server": "Neo4j/5.20.0", "connection_id": "bolt-1"})

		msg := readOneMessage(t, c) // GOODBYE
		tag, err := packstream.PeekTag(msg)
		require.NoError(t, err)
		require.Equal(t, packstream.TagGoodbye, tag)
	})

	cfg := DefaultConfig(srv.addr())
	cfg.ProposedVersions = []wire.Version{{Major: 5, Minor: 4}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Establish(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, StateReady, c.State())
	require.Equal(t, "Neo4j/5.20.0", c.serverAgent)

	require.NoError(t, c.Terminate(ctx, true))
	require.Equal(t, StateDefunct, c.State())
}

func writeFailure(t *testing.T, c net.Conn, code, message string) {
	t.Helper()
	m, err := packstream.EncodeMap(map[string]any{"code": code, "message": message})
	require.NoError(t, err)
	body := packstream.EncodeStructure(packstream.TagFailure, m)
	require.NoError(t, chunk.Encode(c, body))
}

func TestTransientFailureThenResetRestoresReady(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	srv.serveOnce(func(c net.Conn) {
		readHandshakeRequest(t, c)
		writeHandshakeReply(t, c, wire.Version{Major: 5, Minor: 4})
		readOneMessage(t, c) // HELLO
		writeSuccess(t, c, map[string]any{"server": "Neo4j/5.20.0", "connection_id": "bolt-4"})
		readOneMessage(t, c) // RUN
		writeFailure(t, c, "Neo.TransientError.General.DatabaseUnavailable", "db is down")
		readOneMessage(t, c) // RESET
		writeSuccess(t, c, map[string]any{})
	})

	cfg := DefaultConfig(srv.addr())
	cfg.ProposedVersions = []wire.Version{{Major: 5, Minor: 4}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Establish(ctx, cfg)
	require.NoError(t, err)

	_, err = c.Run(ctx, "RETURN 1", nil, nil)
	require.Error(t, err)
	require.Equal(t, StateFailedServerReported, c.State())

	// A new request is refused until RESET recovers the connection.
	_, err = c.Run(ctx, "RETURN 2", nil, nil)
	require.True(t, boerrs.IsKind(err, boerrs.KindInvalidState))
	require.Equal(t, StateFailedServerReported, c.State())

	require.NoError(t, c.Reset(ctx))
	require.Equal(t, StateReady, c.State())
}

func TestTerminateWithoutGoodbyeClosesImmediately(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	sawEOF := make(chan struct{})
	srv.serveOnce(func(c net.Conn) {
		defer close(sawEOF)
		readHandshakeRequest(t, c)
		writeHandshakeReply(t, c, wire.Version{Major: 5, Minor: 4})
		readOneMessage(t, c) // HELLO
		writeSuccess(t, c, map[string]any{"server": "Neo4j/5.20.0", "connection_id": "bolt-5"})
		// No GOODBYE expected: the next read observes the close directly.
		buf := make([]byte, 1)
		_, err := c.Read(buf)
		require.Error(t, err)
	})

	cfg := DefaultConfig(srv.addr())
	cfg.ProposedVersions = []wire.Version{{Major: 5, Minor: 4}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Establish(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Terminate(ctx, false))
	require.Equal(t, StateDefunct, c.State())
	require.Equal(t, wire.Version{}, c.NegotiatedVersion())
	<-sawEOF
}

func TestEstablishRejectsInvalidConfig(t *testing.T) {
	cfg := Config{}
	_, err := Establish(context.Background(), cfg)
	require.Error(t, err)
}

func TestRunFromNonReadyStateRejected(t *testing.T) {
	c := &Connection{state: StateFresh}
	_, err := c.Run(context.Background(), "RETURN 1", nil, nil)
	require.Error(t, err)
}

func TestResetFromNonFailedStateStillAllowedWhenReady(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	srv.serveOnce(func(c net.Conn) {
		readHandshakeRequest(t, c)
		writeHandshakeReply(t, c, wire.Version{Major: 5, Minor: 4})
		readOneMessage(t, c) // HELLO
		writeSuccess(t, c, map[string]any{"server": "Neo4j/5.20.0", "connection_id": "bolt-2"})
		readOneMessage(t, c) // RESET
		writeSuccess(t, c, map[string]any{})
	})

	cfg := DefaultConfig(srv.addr())
	cfg.ProposedVersions = []wire.Version{{Major: 5, Minor: 4}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Establish(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Reset(ctx))
	require.Equal(t, StateReady, c.State())
}
