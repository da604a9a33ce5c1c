package stream

import (
	"context"
	"net"
	"time"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// DialOptions configures DialTCP.
type DialOptions struct {
	Address   string // host:port
	KeepAlive bool   // enable TCP keepalive probes
	NoDelay   bool   // disable Nagle's algorithm once the TCP connection is up
}

// DialTCP establishes the plain TCP connection, bounded by ctx. The TLS
// handshake, if any, is a separate step (NewTLSTransport) so the caller's
// state machine can observe the two phases independently.
func DialTCP(ctx context.Context, opts DialOptions) (net.Conn, error) {
	var d net.Dialer
	if opts.KeepAlive {
		d.KeepAlive = 30 * time.Second
	} else {
		d.KeepAlive = -1
	}

	conn, err := d.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, boerrs.NewNetworkError("stream.dial", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(opts.NoDelay)
	}
	return conn, nil
}

// HostOnly strips the port from a host:port address, for use as the default
// TLS server name.
func HostOnly(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}
