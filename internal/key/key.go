package key

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrKeyParse reports that the supplied bytes are not a PEM-encoded RSA
// private key.
var ErrKeyParse = errors.New("not a PEM-encoded RSA private key")

// DecodeRSAPrivateKey parses a PEM-encoded RSA private key. Both PKCS#1
// and PKCS#8 encodings are accepted; GitHub issues App keys as PKCS#1.
func DecodeRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyParse, err)
	}
	return privateKey, nil
}

// Fingerprint returns the base64url-encoded SHA-256 digest of the PKIX
// encoding of the public key, the same value GitHub shows next to an
// uploaded App key.
func Fingerprint(publicKey *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
