package stream

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/youmark/pkcs8"
)

// decryptPrivateKey decodes a password-protected client private key PEM
// block and returns the equivalent cleartext PEM: a legacy key keeps its
// original block type and DER encoding, and a PKCS#8 key comes back as an
// unencrypted "PRIVATE KEY" block. Two real, tool-interoperable shapes are
// accepted:
//
//   - the legacy "Proc-Type: 4,ENCRYPTED" / "DEK-Info" PEM header produced by
//     e.g. `openssl rsa -aes256 -in key.pem -out key.enc.pem`;
//   - PKCS#8 encrypted keys produced by e.g. `openssl pkcs8 -topk8 -v2 aes256`.
func decryptPrivateKey(encoded []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(encoded)
	if block == nil {
		return nil, fmt.Errorf("private key is not valid PEM")
	}

	//nolint:staticcheck // legacy openssl format; x509.IsEncryptedPEMBlock/DecryptPEMBlock have no replacement
	if x509.IsEncryptedPEMBlock(block) {
		der, err := x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("decrypting legacy PEM private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
	}

	if block.Type == "ENCRYPTED PRIVATE KEY" {
		key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("decrypting PKCS8 private key: %w", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("re-marshaling decrypted private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
	}

	return nil, fmt.Errorf("private key PEM block %q is not a recognized encrypted format", block.Type)
}
