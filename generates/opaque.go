package generates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Sizes in random bytes before hex encoding.
const (
	CodeBytes    = 16
	RefreshBytes = 32
	StateBytes   = 16
	SecretBytes  = 16
)

// RandomHex returns n bytes from crypto/rand, hex encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// OpaqueGenerate generates fixed-size opaque tokens
type OpaqueGenerate struct {
	size int
}

// NewAuthorizeGenerate create to generate the authorize code instance
func NewAuthorizeGenerate() *OpaqueGenerate {
	return &OpaqueGenerate{size: CodeBytes}
}

// NewRefreshGenerate create to generate the refresh token instance
func NewRefreshGenerate() *OpaqueGenerate {
	return &OpaqueGenerate{size: RefreshBytes}
}

// Token returns a fresh random value.
func (g *OpaqueGenerate) Token(ctx context.Context) (string, error) {
	return RandomHex(g.size)
}
