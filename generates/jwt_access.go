package generates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	oerrors "github.com/legit-games/authcode-service/errors"
)

// ErrTokenExpired is returned by Parse together with the verified claims
// when the signature is valid but the token is past its expiry.
var ErrTokenExpired = errors.New("access token expired")

// JWTAccessClaims jwt claims
type JWTAccessClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

// GenerateBasic provide the basis of the generated token data
type GenerateBasic struct {
	UserID    string
	ClientID  string
	CreateAt  time.Time
	ExpiresIn time.Duration
}

// NewJWTAccessGenerate create to generate the jwt access token instance
func NewJWTAccessGenerate(key *SigningKey) *JWTAccessGenerate {
	return &JWTAccessGenerate{
		key:    key,
		method: jwt.SigningMethodES256,
	}
}

// JWTAccessGenerate generate and verify the jwt access token
type JWTAccessGenerate struct {
	key    *SigningKey
	method jwt.SigningMethod
}

// Token signs a new access token for data and returns it with its expiry.
func (a *JWTAccessGenerate) Token(ctx context.Context, data *GenerateBasic) (string, time.Time, error) {
	exp := data.CreateAt.Add(data.ExpiresIn)
	claims := &JWTAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   data.UserID,
			Audience:  jwt.ClaimStrings{data.ClientID},
			IssuedAt:  jwt.NewNumericDate(data.CreateAt),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		ClientID: data.ClientID,
		UserID:   data.UserID,
	}

	token := jwt.NewWithClaims(a.method, claims)
	token.Header["kid"] = a.key.KeyID()
	access, err := token.SignedString(a.key.private)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, claims.ExpiresAt.Time, nil
}

// Parse verifies the signature of tokenString and checks its expiry at now.
// A bad signature, a foreign algorithm or kid, or a malformed token yields
// ErrTokenInvalidSignature. A well-signed token past its expiry yields the
// claims together with ErrTokenExpired.
func (a *JWTAccessGenerate) Parse(tokenString string, now time.Time) (*JWTAccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &JWTAccessClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if kid, ok := t.Header["kid"].(string); ok && kid != a.key.KeyID() {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return a.key.PublicKey(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oerrors.ErrTokenInvalidSignature, err)
	}
	if claims.ExpiresAt == nil || claims.UserID == "" || claims.ClientID == "" {
		return nil, fmt.Errorf("%w: missing required claims", oerrors.ErrTokenInvalidSignature)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}
