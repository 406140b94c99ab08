package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/legit-games/authcode-service/models"
)

var (
	// ErrNotFound is returned when a record does not exist or was already claimed.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate")
)

// DefaultCodeRetention keeps expired authorization codes around long enough
// for redemption to report them as expired instead of unknown.
const DefaultCodeRetention = 10 * time.Minute

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ClientStore persists registered clients.
type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByOwnerAndName(ctx context.Context, ownerID, name string) (*models.Client, error)
}

// ConsentStore persists one consent decision per (user, client).
type ConsentStore interface {
	// Upsert writes c, replacing any previous decision for the same pair.
	Upsert(ctx context.Context, c *models.Consent) error
	Get(ctx context.Context, userID, clientID string) (*models.Consent, error)
}

// CodeStore persists authorization codes.
type CodeStore interface {
	Create(ctx context.Context, ac *models.AuthorizationCode) error
	// Claim atomically reads and deletes the code. Of any number of
	// concurrent calls for the same code at most one returns it; the others
	// get ErrNotFound. Expired but retained codes are returned as well.
	Claim(ctx context.Context, code string) (*models.AuthorizationCode, error)
}

// AccessTokenStore mirrors issued access tokens for early revocation.
type AccessTokenStore interface {
	CreateAccess(ctx context.Context, t *models.AccessToken) error
	GetAccess(ctx context.Context, token string) (*models.AccessToken, error)
	// DeleteAccess removes the record; a missing record is not an error.
	DeleteAccess(ctx context.Context, token string) error
}

// RefreshTokenStore persists refresh tokens.
type RefreshTokenStore interface {
	CreateRefresh(ctx context.Context, t *models.RefreshToken) error
	GetRefresh(ctx context.Context, token string) (*models.RefreshToken, error)
	// RevokeRefresh flags the record as revoked without deleting it.
	RevokeRefresh(ctx context.Context, token string) error
	// DeleteRefresh removes the record; a missing record is not an error.
	DeleteRefresh(ctx context.Context, token string) error
}

// TokenStore is implemented by backends that hold both token kinds.
type TokenStore interface {
	AccessTokenStore
	RefreshTokenStore
}

// Stores bundles one repository per entity.
type Stores struct {
	Users    UserStore
	Clients  ClientStore
	Consents ConsentStore
	Codes    CodeStore
	Access   AccessTokenStore
	Refresh  RefreshTokenStore
	// Sweepers purge expired rows for backends without native expiry.
	Sweepers []Sweeper

	closers []func() error
}

// Close releases every backend opened for the bundle.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HashToken returns the hex sha256 used as the persisted key for a token.
// Raw token values are never written to a store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// codeTTL is how long a backend with native expiry keeps a code record.
func codeTTL(ac *models.AuthorizationCode) time.Duration {
	ttl := time.Until(ac.ExpiresAt) + DefaultCodeRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// tokenTTL is how long a backend with native expiry keeps a token record.
func tokenTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
