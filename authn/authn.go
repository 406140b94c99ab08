// Package authn verifies end-user credentials. The authorization core only
// depends on the Authenticator interface.
package authn

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/store"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// Credential is what a user presents at login.
type Credential struct {
	Username string
	Password string
}

// Identity is the authenticated subject.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Authenticator verifies a credential and returns the identity it proves.
type Authenticator interface {
	Verify(ctx context.Context, cred Credential) (*Identity, error)
}

// PasswordAuthenticator checks username/password pairs against bcrypt hashes.
type PasswordAuthenticator struct {
	users store.UserStore
	// compared when the user does not exist so both paths cost one bcrypt round
	dummy []byte
}

// NewPasswordAuthenticator create a bcrypt-backed authenticator
func NewPasswordAuthenticator(users store.UserStore) *PasswordAuthenticator {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password-0"), bcrypt.DefaultCost)
	return &PasswordAuthenticator{users: users, dummy: dummy}
}

// Verify returns ErrInvalidCredentials for an unknown user or a wrong
// password, and a wrapped ErrStorageFailure when the lookup itself fails.
func (a *PasswordAuthenticator) Verify(ctx context.Context, cred Credential) (*Identity, error) {
	username := strings.TrimSpace(cred.Username)
	if username == "" || cred.Password == "" {
		return nil, oerrors.ErrInvalidCredentials
	}
	u, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(cred.Password))
			return nil, oerrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: lookup user: %v", oerrors.ErrStorageFailure, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cred.Password)) != nil {
		return nil, oerrors.ErrInvalidCredentials
	}
	return &Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// HashPassword returns the bcrypt hash stored for a new user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidatePassword enforces the registration policy: at least
// MinPasswordLength characters, ASCII letters and digits only, with at least
// one of each.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", oerrors.ErrValidation, MinPasswordLength)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case r > unicode.MaxASCII:
			return fmt.Errorf("%w: password must contain only letters and digits", oerrors.ErrValidation)
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		default:
			return fmt.Errorf("%w: password must contain only letters and digits", oerrors.ErrValidation)
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain a letter and a digit", oerrors.ErrValidation)
	}
	return nil
}
