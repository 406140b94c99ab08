package generates

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// SigningAlgorithm is the only algorithm used for access tokens, both at
// initial issuance and on refresh.
const SigningAlgorithm = "ES256"

var errNotP256 = errors.New("signing key must be an ECDSA P-256 key")

// SigningKey is the immutable ES256 key pair shared by the token issuer and
// the validator. Build it once at startup and pass it by reference.
type SigningKey struct {
	kid     string
	private *ecdsa.PrivateKey
}

// NewSigningKey wraps priv and derives its key id from the RFC 7638 thumbprint.
func NewSigningKey(priv *ecdsa.PrivateKey) (*SigningKey, error) {
	if priv == nil || priv.Curve != elliptic.P256() {
		return nil, errNotP256
	}
	jwk := jose.JSONWebKey{Key: &priv.PublicKey}
	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("compute key thumbprint: %w", err)
	}
	return &SigningKey{
		kid:     base64.RawURLEncoding.EncodeToString(tp),
		private: priv,
	}, nil
}

// GenerateSigningKey creates an ephemeral P-256 key. Tokens signed with it do
// not survive a restart.
func GenerateSigningKey() (*SigningKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewSigningKey(priv)
}

// ParseSigningKeyPEM accepts SEC1 ("EC PRIVATE KEY") and PKCS8 encodings.
func ParseSigningKeyPEM(data []byte) (*SigningKey, error) {
	priv, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewSigningKey(priv)
}

// LoadSigningKeyFile reads a PEM encoded private key from path.
func LoadSigningKeyFile(path string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}
	return ParseSigningKeyPEM(data)
}

// KeyID returns the kid placed in every token header.
func (k *SigningKey) KeyID() string { return k.kid }

// PublicKey returns the verification half of the pair.
func (k *SigningKey) PublicKey() *ecdsa.PublicKey { return &k.private.PublicKey }

// EncodePrivateKeyPEM serializes the private key as a SEC1 PEM block.
func (k *SigningKey) EncodePrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(k.private)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// JWKS returns the public key set served to downstream verifiers.
func (k *SigningKey) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       k.PublicKey(),
			KeyID:     k.kid,
			Algorithm: SigningAlgorithm,
			Use:       "sig",
		}},
	}
}
