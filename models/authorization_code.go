package models

import "time"

// AuthorizationCode is a one-time credential bound to a user, a client and
// the redirect URI it was issued for.
type AuthorizationCode struct {
	Code        string    `json:"code"`
	UserID      string    `json:"user_id"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired checks if the code has expired at now.
func (ac *AuthorizationCode) IsExpired(now time.Time) bool {
	return now.After(ac.ExpiresAt)
}
