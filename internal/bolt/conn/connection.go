// Package conn implements the physical Bolt connection: dialing, the Bolt
// handshake, HELLO/LOGON authentication, and the READY/STREAMING lifecycle.
// It is the synchronous surface; package asyncconn wraps the same building
// blocks behind goroutine-per-operation futures.
package conn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-bolt/boltconn/internal/bolt/auth"
	"github.com/go-bolt/boltconn/internal/bolt/chunk"
	"github.com/go-bolt/boltconn/internal/bolt/packstream"
	"github.com/go-bolt/boltconn/internal/bolt/stream"
	"github.com/go-bolt/boltconn/internal/bolt/wire"
	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/go-bolt/boltconn/internal/logger"
)

var connCounter uint64

func nextID() string { return fmt.Sprintf("c%06d", atomic.AddUint64(&connCounter, 1)) }

// SuccessSummary is the decoded field set of a SUCCESS response, exposed as
// a small accessor struct rather than a raw map so callers don't repeat
// type assertions at every call site.
type SuccessSummary struct {
	fields map[string]any
}

func (s SuccessSummary) String(key string) string {
	v, _ := s.fields[key].(string)
	return v
}

func (s SuccessSummary) Int64(key string) int64 {
	v, _ := s.fields[key].(int64)
	return v
}

func (s SuccessSummary) Raw() map[string]any { return s.fields }

// Bookmark returns the causal-consistency bookmark a RUN/PULL summary
// carries, or "" if the server didn't report one.
func (s SuccessSummary) Bookmark() string { return s.String("bookmark") }

// Fields returns the result's column names, as reported by a RUN summary.
// PULL's terminal summary does not repeat them.
func (s SuccessSummary) Fields() []string {
	raw, ok := s.fields["fields"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if str, ok := f.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// TFirst returns the millisecond latency to the first record, as reported
// by a RUN summary's "t_first" field.
func (s SuccessSummary) TFirst() int64 { return s.Int64("t_first") }

// QueryID returns the server-assigned identifier for the query this summary
// describes, for use as the qid argument to a later Pull call, or -1 if the
// server didn't report one.
func (s SuccessSummary) QueryID() int64 {
	if v, ok := s.fields["qid"]; ok {
		if i, ok := v.(int64); ok {
			return i
		}
	}
	return -1
}

// Connection is a single physical Bolt connection and its lifecycle state
// machine. Not safe for concurrent use by multiple goroutines issuing
// requests at once — callers (or asyncconn's per-operation queue) must
// serialize their own requests.
type Connection struct {
	mu      sync.Mutex
	state   State
	lastErr error

	id        string
	cfg       Config
	transport stream.Transport
	version   wire.Version
	log       *slog.Logger

	serverAgent    string
	serverConnID   string
	utcPatchActive bool

	creationTime time.Time
	lastUsedTime time.Time
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsReady reports whether the connection may currently accept a new
// caller-initiated request.
func (c *Connection) IsReady() bool { return c.State() == StateReady }

// IsDefunct reports whether the connection has reached its terminal state
// and will refuse all further I/O.
func (c *Connection) IsDefunct() bool { return c.State() == StateDefunct }

// LastError returns the most recent error the connection classified or
// encountered, or nil if none has occurred yet.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// NegotiatedVersion returns the protocol version agreed during the Bolt
// handshake, or the zero Version before BOLT_HANDSHAKEN.
func (c *Connection) NegotiatedVersion() wire.Version { return c.version }

// ServerAgent returns the server's self-reported agent string, populated
// once HELLO succeeds.
func (c *Connection) ServerAgent() string { return c.serverAgent }

// ServerConnectionID returns the server-assigned connection identifier,
// populated once HELLO succeeds.
func (c *Connection) ServerConnectionID() string { return c.serverConnID }

// UTCPatchActive reports whether the server confirmed the "utc" patch
// (always true for negotiated version >= 5.0; conditional on the server's
// HELLO reply for 4.3/4.4; always false below that).
func (c *Connection) UTCPatchActive() bool { return c.utcPatchActive }

// LastUsedTime returns the timestamp of the connection's most recent
// completed operation. Monotonic, never earlier than CreationTime.
func (c *Connection) LastUsedTime() time.Time { return c.lastUsedTime }

// CreationTime returns when the connection was constructed, before dialing
// began.
func (c *Connection) CreationTime() time.Time { return c.creationTime }

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// casState performs a compare-and-swap on the state field. Establish uses it
// for the FRESH→TCP_CONNECTING transition; every other transition, including
// the move to DEFUNCT, goes through setState or fail under the same mutex.
func (c *Connection) casState(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// fail records err as lastErr and transitions to s in one step, returning
// err unchanged so call sites can write `return c.fail(StateDefunct, err)`.
func (c *Connection) fail(s State, err error) error {
	c.mu.Lock()
	c.state = s
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastUsedTime = time.Now()
	c.mu.Unlock()
}

// Establish dials, completes the Bolt handshake, and authenticates,
// returning a Connection in StateReady on success. On any failure the
// underlying transport is closed and the connection is left in
// StateDefunct.
func Establish(ctx context.Context, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := nextID()
	now := time.Now()
	c := &Connection{id: id, cfg: cfg, state: StateFresh, log: logger.WithConn(logger.Logger(), id, cfg.Address), creationTime: now, lastUsedTime: now}

	if !c.casState(StateFresh, StateTCPConnecting) {
		return nil, boerrs.New(boerrs.KindInvalidState, "conn.establish", fmt.Errorf("connection is not FRESH"))
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	rawConn, err := stream.DialTCP(dialCtx, stream.DialOptions{
		Address:   cfg.Address,
		KeepAlive: cfg.KeepAlive,
		NoDelay:   cfg.NoDelay,
	})
	if err != nil {
		return nil, c.fail(StateDefunct, err)
	}
	c.setState(StateTCPConnected)

	if cfg.TLS.Strategy == stream.TLSDisabled {
		c.transport = stream.NewPlainTransport(rawConn)
	} else {
		c.setState(StateSSLContextSetup)
		tlsOpts := cfg.TLS
		if tlsOpts.ServerName == "" {
			tlsOpts.ServerName = stream.HostOnly(cfg.Address)
		}
		tlsCfg, err := stream.NewTLSConfig(tlsOpts)
		if err != nil {
			_ = rawConn.Close()
			return nil, c.fail(StateDefunct, err)
		}

		c.setState(StateSSLHandshaking)
		tlsTimeout := cfg.TLSHandshakeTimeout
		if tlsTimeout <= 0 {
			tlsTimeout = cfg.HandshakeTimeout
		}
		tlsCtx, cancelTLS := context.WithTimeout(ctx, tlsTimeout)
		transport, err := stream.NewTLSTransport(tlsCtx, rawConn, tlsCfg)
		cancelTLS()
		if err != nil {
			return nil, c.fail(StateDefunct, err)
		}
		c.transport = transport
		c.setState(StateSSLHandshaken)
	}

	if err := c.performBoltHandshake(ctx); err != nil {
		_ = c.transport.Close()
		return nil, c.fail(StateDefunct, err)
	}

	if err := c.authenticate(ctx); err != nil {
		_ = c.transport.Close()
		return nil, c.fail(StateDefunct, err)
	}

	c.touch()
	c.log = logger.WithServer(logger.WithVersion(c.log, c.version.Major, c.version.Minor), c.serverAgent, c.serverConnID)
	c.log.Info("bolt connection established")
	return c, nil
}

func (c *Connection) performBoltHandshake(ctx context.Context) error {
	c.setState(StateBoltHandshaking)
	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	req, err := wire.BuildHandshakeRequest(c.cfg.ProposedVersions)
	if err != nil {
		return err
	}
	if err := c.transport.WriteAll(hctx, req); err != nil {
		return err
	}

	reply := make([]byte, 4)
	if err := c.transport.ReadExact(hctx, reply); err != nil {
		return err
	}
	v, err := wire.ParseHandshakeReply(reply)
	if err != nil {
		return err
	}
	if err := wire.VerifyProposed(v, c.cfg.ProposedVersions); err != nil {
		return err
	}
	c.version = v
	c.setState(StateBoltHandshaken)
	return nil
}

// splitAuthVersion reports whether negotiated version v uses the post-5.1
// LOGON/LOGOFF split-auth phase rather than embedding credentials in HELLO.
func splitAuthVersion(v wire.Version) bool {
	return v.Major > 5 || (v.Major == 5 && v.Minor >= 1)
}

// offersUTCPatch reports whether negotiated version v is old enough to need
// to ask for the "utc" HELLO patch explicitly; 5.0+ always has it.
func offersUTCPatch(v wire.Version) bool {
	return v.Major == 4 && (v.Minor == 3 || v.Minor == 4)
}

func (c *Connection) authenticate(ctx context.Context) error {
	helloFields := map[string]any{"user_agent": c.cfg.UserAgent}
	if c.cfg.BoltAgent != "" {
		helloFields["bolt_agent"] = map[string]any{"product": c.cfg.BoltAgent}
	}
	if len(c.cfg.RoutingContext) > 0 {
		ctxMap := make(map[string]any, len(c.cfg.RoutingContext))
		for k, v := range c.cfg.RoutingContext {
			ctxMap[k] = v
		}
		helloFields["routing"] = ctxMap
	}

	wantsUTCPatch := offersUTCPatch(c.version)
	if wantsUTCPatch {
		helloFields["patch_bolt"] = []any{"utc"}
	}

	splitAuth := splitAuthVersion(c.version)
	if !splitAuth {
		authFields, err := c.cfg.AuthToken.ToLogonFields()
		if err != nil {
			return err
		}
		for k, v := range authFields {
			helloFields[k] = v
		}
	}

	body, err := packstream.EncodeHello(helloFields)
	if err != nil {
		return err
	}
	c.setState(StateHelloAuthSent)
	if err := chunk.Encode(c.writer(ctx), body); err != nil {
		return err
	}

	summary, err := c.readSummary(ctx)
	if err != nil {
		return err
	}
	c.serverAgent = summary.String("server")
	c.serverConnID = summary.String("connection_id")
	c.utcPatchActive = c.version.Major >= 5 || (wantsUTCPatch && patchListContains(summary.Raw()["patch_bolt"], "utc"))

	if splitAuth && c.cfg.AuthToken.Scheme != auth.SchemeNone {
		logonFields, err := c.cfg.AuthToken.ToLogonFields()
		if err != nil {
			return err
		}
		logonBody, err := packstream.EncodeLogon(logonFields)
		if err != nil {
			return err
		}
		if err := chunk.Encode(c.writer(ctx), logonBody); err != nil {
			return err
		}
		if _, err := c.readSummary(ctx); err != nil {
			return err
		}
	}

	c.setState(StateReady)
	return nil
}

func patchListContains(v any, want string) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && s == want {
			return true
		}
	}
	return false
}

// readSummary blocks for the next SUCCESS/FAILURE/IGNORED response and
// returns the decoded fields, classifying and applying any FAILURE/IGNORED
// as a state transition before returning its error.
func (c *Connection) readSummary(ctx context.Context) (SuccessSummary, error) {
	body, err := chunk.Decode(c.reader(ctx))
	if err != nil {
		return SuccessSummary{}, c.fail(StateDefunct, err)
	}
	return c.handleSummaryBody(body)
}

// handleSummaryBody classifies an already-decoded SUCCESS/FAILURE/IGNORED
// message body. Any other tag marks the connection DEFUNCT with
// InvalidMessageFormat.
func (c *Connection) handleSummaryBody(body []byte) (SuccessSummary, error) {
	tag, fields, err := packstream.DecodeSummary(body)
	if err != nil {
		return SuccessSummary{}, c.fail(StateDefunct, err)
	}
	switch tag {
	case packstream.TagSuccess:
		c.touch()
		return SuccessSummary{fields: fields}, nil
	case packstream.TagFailure:
		code, ok := fields["neo4j_code"].(string)
		if !ok {
			code, _ = fields["code"].(string)
		}
		message, _ := fields["message"].(string)
		failErr, st := classifyFailure(code, message)
		return SuccessSummary{}, c.fail(st, failErr)
	case packstream.TagIgnored:
		return SuccessSummary{}, c.fail(StateFailedServerReported, boerrs.NewServerFailure("Neo.ClientError.Request.Ignored", "request ignored by server", boerrs.KindUnknownError, false))
	default:
		return SuccessSummary{}, c.fail(StateDefunct, boerrs.New(boerrs.KindInvalidMessageFormat, "conn.read_summary", fmt.Errorf("unexpected summary tag 0x%02x", tag)))
	}
}

// RecordHandler is invoked once per RECORD message a streaming request
// produces, in server order, with that record's decoded field list.
// Returning an error aborts the stream early; the connection is left
// DEFUNCT since the server may still have unread records or a summary in
// flight that the caller chose not to drain.
type RecordHandler func(values []any) error

// SendRequestReceiveSummary implements the request→summary pattern:
// chunk-send payload, then chunk-receive exactly one response (NOOPs are
// transparently skipped by the chunking layer itself).
func (c *Connection) SendRequestReceiveSummary(ctx context.Context, payload []byte) (SuccessSummary, error) {
	if !c.State().CanSendRequest() {
		return SuccessSummary{}, boerrs.New(boerrs.KindInvalidState, "conn.send_request_receive_summary", fmt.Errorf("cannot send a request from state %s", c.State()))
	}
	if err := chunk.Encode(c.writer(ctx), payload); err != nil {
		return SuccessSummary{}, c.fail(StateDefunct, err)
	}
	summary, err := c.readSummary(ctx)
	if err != nil {
		return summary, err
	}
	c.setState(StateReady)
	return summary, nil
}

// SendRequestReceiveStream implements the request→stream→summary pattern:
// chunk-send payload, then chunk-receive in a loop, dispatching RECORD
// messages to handle and terminating on the first
// SUCCESS/FAILURE/IGNORED (returned exactly as SendRequestReceiveSummary
// would).
func (c *Connection) SendRequestReceiveStream(ctx context.Context, payload []byte, handle RecordHandler) (SuccessSummary, error) {
	if !c.State().CanSendRequest() {
		return SuccessSummary{}, boerrs.New(boerrs.KindInvalidState, "conn.send_request_receive_stream", fmt.Errorf("cannot send a request from state %s", c.State()))
	}
	if err := chunk.Encode(c.writer(ctx), payload); err != nil {
		return SuccessSummary{}, c.fail(StateDefunct, err)
	}
	c.setState(StateStreaming)

	for {
		body, err := chunk.Decode(c.reader(ctx))
		if err != nil {
			return SuccessSummary{}, c.fail(StateDefunct, err)
		}
		tag, err := packstream.PeekTag(body)
		if err != nil {
			return SuccessSummary{}, c.fail(StateDefunct, err)
		}
		if tag == packstream.TagRecord {
			values, err := packstream.DecodeRecord(body)
			if err != nil {
				return SuccessSummary{}, c.fail(StateDefunct, err)
			}
			if err := handle(values); err != nil {
				return SuccessSummary{}, c.fail(StateDefunct, err)
			}
			continue
		}
		c.setState(StateAwaitingSummary)
		summary, err := c.handleSummaryBody(body)
		if err != nil {
			return summary, err
		}
		c.setState(StateReady)
		return summary, nil
	}
}

// Reset sends a RESET request, which is the only request a connection in
// StateFailedServerReported may issue, and blocks until the server confirms
// it with SUCCESS. RESET's own outcome overrides the generic failure
// classification: any non-SUCCESS outcome marks the connection DEFUNCT
// outright rather than leaving it in FAILED_SERVER_REPORTED (there is
// nowhere left to recover to).
func (c *Connection) Reset(ctx context.Context) error {
	if st := c.State(); st != StateReady && st != StateFailedServerReported {
		return boerrs.New(boerrs.KindInvalidState, "conn.reset", fmt.Errorf("cannot RESET from state %s", st))
	}
	if err := chunk.Encode(c.writer(ctx), packstream.EncodeReset()); err != nil {
		return c.fail(StateDefunct, err)
	}
	if _, err := c.readSummary(ctx); err != nil {
		return c.fail(StateDefunct, err)
	}
	c.setState(StateReady)
	c.touch()
	return nil
}

// Ping verifies that the connection is alive and usable by issuing a RESET
// and awaiting its SUCCESS; a healthy connection is left READY.
func (c *Connection) Ping(ctx context.Context) error {
	return c.Reset(ctx)
}

// Noop writes a bare zero-length chunk header to keep an idle TCP
// connection warm without invoking any Bolt message semantics. It is
// emitted only when the caller asks rather than on a background timer,
// keeping the connection single-owner.
func (c *Connection) Noop(ctx context.Context) error {
	if c.State() != StateReady {
		return boerrs.New(boerrs.KindInvalidState, "conn.noop", fmt.Errorf("cannot send NOOP from state %s", c.State()))
	}
	buf := make([]byte, 2)
	wire.PutUint16(buf, 0)
	if _, err := c.writer(ctx).Write(buf); err != nil {
		return c.fail(StateDefunct, err)
	}
	c.touch()
	return nil
}

// Logoff sends a LOGOFF message (protocol >= 5.1 only), dropping the
// connection's current authentication without tearing it down, so the
// caller can follow up with a fresh LOGON under different credentials.
func (c *Connection) Logoff(ctx context.Context) error {
	if c.State() != StateReady {
		return boerrs.New(boerrs.KindInvalidState, "conn.logoff", fmt.Errorf("cannot LOGOFF from state %s", c.State()))
	}
	if !splitAuthVersion(c.version) {
		return boerrs.New(boerrs.KindInvalidArgument, "conn.logoff", fmt.Errorf("LOGOFF requires protocol >= 5.1, negotiated %s", c.version))
	}
	if err := chunk.Encode(c.writer(ctx), packstream.EncodeLogoff()); err != nil {
		return c.fail(StateDefunct, err)
	}
	if _, err := c.readSummary(ctx); err != nil {
		return err
	}
	c.setState(StateReady)
	return nil
}

// Run sends a RUN request and awaits its own SUCCESS/FAILURE acknowledgment
// (the query-metadata summary, e.g. field names), without pulling any
// records. Callers that also want result rows call Pull next; callers that
// just want the acknowledgment (DDL, parameterless writes) can stop here.
func (c *Connection) Run(ctx context.Context, query string, params map[string]any, extra map[string]any) (SuccessSummary, error) {
	runBody, err := packstream.EncodeRun(query, params, extra)
	if err != nil {
		return SuccessSummary{}, err
	}
	return c.SendRequestReceiveSummary(ctx, runBody)
}

// Pull sends a PULL request for n records (n < 0 requests "all remaining")
// against the query identified by qid (qid < 0 means "the last RUN"),
// invoking handle once per RECORD in server order, and returns the terminal
// summary once the result is exhausted or the server reports FAILURE.
func (c *Connection) Pull(ctx context.Context, n int64, qid int64, handle RecordHandler) (SuccessSummary, error) {
	extra := map[string]any{"n": n}
	if qid >= 0 {
		extra["qid"] = qid
	}
	pullBody, err := packstream.EncodePull(extra)
	if err != nil {
		return SuccessSummary{}, err
	}
	return c.SendRequestReceiveStream(ctx, pullBody, handle)
}

// RunAndPullAll is the common one-shot convenience: RUN the query, then
// PULL every record it produces, invoking handle per row, returning the
// final summary.
func (c *Connection) RunAndPullAll(ctx context.Context, query string, params map[string]any, runExtra map[string]any, handle RecordHandler) (SuccessSummary, error) {
	if _, err := c.Run(ctx, query, params, runExtra); err != nil {
		return SuccessSummary{}, err
	}
	return c.Pull(ctx, -1, -1, handle)
}

// Terminate closes the transport and moves the connection to the terminal
// DEFUNCT state. When sendGoodbye is true and the protocol handshake had
// completed, a best-effort GOODBYE is written first; Bolt defines no
// response to GOODBYE, so its outcome never changes the result.
func (c *Connection) Terminate(ctx context.Context, sendGoodbye bool) error {
	prev := c.State()
	if prev.IsTerminal() {
		return nil
	}
	defer func() {
		if c.transport != nil {
			_ = c.transport.Close()
		}
		c.setState(StateDefunct)
		c.version = wire.Version{}
		c.serverAgent = ""
		c.serverConnID = ""
		c.utcPatchActive = false
	}()
	if sendGoodbye && prev >= StateBoltHandshaken && c.transport != nil {
		_ = chunk.Encode(c.writer(ctx), packstream.EncodeGoodbye())
	}
	return nil
}
