package models

import "time"

// Consent records a user's decision for a client. There is one record per
// (UserID, ClientID); a later decision overwrites the earlier one.
type Consent struct {
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Granted   bool      `json:"granted"`
	UpdatedAt time.Time `json:"updated_at"`
}
