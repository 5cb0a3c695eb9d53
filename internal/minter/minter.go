package minter

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zarvd/github-app-jwt/internal/key"
)

// MaxLifetime is the longest token lifetime GitHub accepts when
// authenticating as an App. The minter does not enforce it; it signs
// whatever bounds it is given and leaves rejection to GitHub.
const MaxLifetime = 10 * time.Minute

var ErrInvalidClaims = errors.New("invalid claims")

// Claims are the three fields a GitHub App authentication token carries.
type Claims struct {
	// Issuer is the App ID, mapped to the "iss" claim.
	Issuer string
	// IssuedAt and ExpiresAt are encoded as integer Unix seconds.
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c Claims) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer must not be empty", ErrInvalidClaims)
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return fmt.Errorf("%w: exp must be after iat", ErrInvalidClaims)
	}
	return nil
}

// Minter produces RS256-signed tokens in compact serialization.
type Minter struct {
	signingKey *rsa.PrivateKey
}

func New(signingKey *rsa.PrivateKey) *Minter {
	return &Minter{signingKey: signingKey}
}

// NewFromPEM builds a Minter from PEM-encoded RSA private key bytes.
func NewFromPEM(pemBytes []byte) (*Minter, error) {
	signingKey, err := key.DecodeRSAPrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return New(signingKey), nil
}

// Mint signs the claims into a compact header.payload.signature token.
func (m *Minter) Mint(claims Claims) (string, error) {
	if err := claims.validate(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    claims.Issuer,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's RS256 signature against publicKey and
// returns the embedded claims. Expiry is not checked, so tokens with
// historical timestamps can still be inspected.
func Verify(token string, publicKey *rsa.PublicKey) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &registered,
		func(t *jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("failed to verify token: %w", err)
	}

	claims := Claims{Issuer: registered.Issuer}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
