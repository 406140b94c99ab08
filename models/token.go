package models

import "time"

// AccessToken mirrors an issued JWT so it can be revoked before it expires.
// Stores key the record by a hash of Token and never persist the raw value.
type AccessToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the token has expired at now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshToken is the long-lived opaque credential used to mint new access tokens.
type RefreshToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the token has expired at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Usable reports whether the refresh token may still mint access tokens.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// BelongsTo reports whether the token was issued to the (userID, clientID) pair.
func (t *RefreshToken) BelongsTo(userID, clientID string) bool {
	return t.UserID == userID && t.ClientID == clientID
}
