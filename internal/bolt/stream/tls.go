package stream

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/go-bolt/boltconn/internal/logger"
)

// TLSStrategy selects how the server's certificate is validated.
type TLSStrategy string

const (
	// TLSDisabled carries traffic as plaintext; no TLS handshake occurs.
	TLSDisabled TLSStrategy = "disabled"
	// TLSTrustAll skips certificate verification entirely. Intended only
	// for local development against self-signed test servers.
	TLSTrustAll TLSStrategy = "trust_all"
	// TLSSystemRoots validates the server certificate against the host's
	// standard trust store.
	TLSSystemRoots TLSStrategy = "system_roots"
	// TLSCustomRoots validates against a caller-supplied CA bundle instead
	// of the system roots.
	TLSCustomRoots TLSStrategy = "custom_roots"
)

// ClientCert optionally presents a client certificate during the TLS
// handshake (mutual TLS). PrivateKeyPassword is only meaningful when the
// private key PEM block is itself encrypted — either the legacy
// "Proc-Type/DEK-Info" OpenSSL format or a PKCS#8 encrypted key.
type ClientCert struct {
	CertPEM            []byte
	KeyPEM             []byte
	PrivateKeyPassword string
}

// TLSOptions configures how NewTLSConfig builds a *tls.Config.
type TLSOptions struct {
	Strategy   TLSStrategy
	ServerName string
	CustomCAs  [][]byte // PEM-encoded CA certificates, used when Strategy == TLSCustomRoots
	ClientCert *ClientCert

	// HostnameVerificationEnabled, when true, keeps crypto/tls's own check
	// of the server certificate against ServerName; when false, a
	// verification callback still validates the certificate chain but skips
	// the hostname check. Under TLSTrustAll hostname verification (and SNI
	// itself) is always skipped regardless of this field's value.
	HostnameVerificationEnabled bool
}

// NewTLSConfig resolves opts into a *tls.Config ready to pass to
// NewTLSTransport. Returns nil (not an error) when Strategy is
// TLSDisabled, signaling the caller to use a plaintext transport instead.
func NewTLSConfig(opts TLSOptions) (*tls.Config, error) {
	if opts.Strategy == TLSDisabled {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	switch opts.Strategy {
	case TLSTrustAll:
		logger.Warn("TLS trust-all strategy in use: server certificate validation and SNI are both disabled; do not use against a production cluster")
		cfg.InsecureSkipVerify = true
	case TLSSystemRoots:
		// cfg.RootCAs left nil: crypto/tls falls back to the system pool.
	case TLSCustomRoots:
		pool := x509.NewCertPool()
		for _, ca := range opts.CustomCAs {
			if !pool.AppendCertsFromPEM(ca) {
				return nil, boerrs.New(boerrs.KindInvalidArgument, "stream.tls_config.custom_ca", fmt.Errorf("failed to parse CA certificate"))
			}
		}
		cfg.RootCAs = pool
	default:
		return nil, boerrs.New(boerrs.KindInvalidArgument, "stream.tls_config.strategy", fmt.Errorf("unknown TLS strategy %q", opts.Strategy))
	}

	if opts.ClientCert != nil {
		cert, err := loadClientCert(*opts.ClientCert)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if opts.Strategy != TLSTrustAll {
		// SNI is only meaningful when the server certificate is actually
		// validated; trust-all skips both.
		cfg.ServerName = opts.ServerName
		if !opts.HostnameVerificationEnabled {
			skipHostnameVerification(cfg)
		}
	}

	return cfg, nil
}

// skipHostnameVerification keeps certificate-chain validation but drops the
// hostname check crypto/tls otherwise performs against cfg.ServerName: chain
// verification runs manually with an empty DNSName, then
// VerifyPeerCertificate's own error is what the handshake surfaces.
func skipHostnameVerification(cfg *tls.Config) {
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(certificates [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, len(certificates))
		for i, asn1Data := range certificates {
			cert, err := x509.ParseCertificate(asn1Data)
			if err != nil {
				return err
			}
			certs[i] = cert
		}
		opts := x509.VerifyOptions{Roots: cfg.RootCAs, Intermediates: x509.NewCertPool()}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}

func loadClientCert(cc ClientCert) (tls.Certificate, error) {
	keyPEM := cc.KeyPEM
	if cc.PrivateKeyPassword != "" {
		decrypted, err := decryptPrivateKey(cc.KeyPEM, cc.PrivateKeyPassword)
		if err != nil {
			return tls.Certificate{}, boerrs.New(boerrs.KindInvalidArgument, "stream.tls_config.client_key", err)
		}
		keyPEM = decrypted
	}
	cert, err := tls.X509KeyPair(cc.CertPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, boerrs.New(boerrs.KindInvalidArgument, "stream.tls_config.client_cert", err)
	}
	return cert, nil
}
