package conn

import (
	"fmt"
	"time"

	"github.com/go-bolt/boltconn/internal/bolt/auth"
	"github.com/go-bolt/boltconn/internal/bolt/stream"
	"github.com/go-bolt/boltconn/internal/bolt/wire"
	libval "github.com/go-playground/validator/v10"
)

// Config describes everything Establish needs to bring up a single
// physical connection. Validated with github.com/go-playground/validator/v10,
// the same way a TLS certificates config struct is typically validated.
type Config struct {
	Address string `validate:"required,hostname_port"`

	ProposedVersions []wire.Version `validate:"required,min=1,max=4"`

	TLS stream.TLSOptions

	UserAgent string `validate:"required"`
	AuthToken auth.Token

	ConnectTimeout      time.Duration `validate:"required"`
	TLSHandshakeTimeout time.Duration
	HandshakeTimeout    time.Duration `validate:"required"`
	SocketReadTimeout   time.Duration
	SocketWriteTimeout  time.Duration
	// KeepAlive and NoDelay are the TCP-level socket options applied once
	// the connection is up.
	KeepAlive bool
	NoDelay   bool

	// BoltAgent names this client in HELLO's optional bolt_agent field.
	BoltAgent string

	RoutingContext map[string]string
}

// DefaultConfig returns a Config with the timeouts and version-proposal
// list a driver would use out of the box.
func DefaultConfig(address string) Config {
	return Config{
		Address:             address,
		ProposedVersions:    append([]wire.Version(nil), wire.PreferredVersions[:4]...),
		UserAgent:           "boltconn/1.0",
		AuthToken:           auth.None(),
		ConnectTimeout:      5 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		HandshakeTimeout:    5 * time.Second,
		TLS:                 stream.TLSOptions{Strategy: stream.TLSDisabled},
	}
}

// Validate checks structural validity of the configuration before Establish
// dials anything.
func (c *Config) Validate() error {
	if err := libval.New().Struct(c); err != nil {
		if ive, ok := err.(*libval.InvalidValidationError); ok {
			return fmt.Errorf("config: %w", ive)
		}
		var msgs []string
		for _, fe := range err.(libval.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("field %q failed constraint %q", fe.StructNamespace(), fe.ActualTag()))
		}
		return fmt.Errorf("config: %v", msgs)
	}
	return nil
}
