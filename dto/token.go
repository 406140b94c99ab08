package dto

import "time"

// ValidateResponse is returned by the introspection endpoint. Only Valid is
// set for a token that does not verify.
type ValidateResponse struct {
	Valid     bool       `json:"valid"`
	UserID    string     `json:"user_id,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
