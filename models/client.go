package models

import "time"

// DefaultClientPrefix prefixes the name of the client created for every new user.
const DefaultClientPrefix = "d"

// DefaultClientName returns the name of the default client owned by userID.
func DefaultClientName(userID string) string {
	return DefaultClientPrefix + userID
}

// Client is a registered relying party.
type Client struct {
	ID          string    `json:"id"`
	Secret      string    `json:"secret"`
	Name        string    `json:"name"`
	RedirectURI string    `json:"redirect_uri"`
	LandingPage string    `json:"landing_page,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// FinalRedirect is where the user lands after a successful code exchange.
func (c *Client) FinalRedirect() string {
	if c.LandingPage != "" {
		return c.LandingPage
	}
	return c.RedirectURI
}

// IsOwnedBy reports whether userID registered the client.
func (c *Client) IsOwnedBy(userID string) bool {
	return c != nil && userID != "" && c.OwnerID == userID
}
