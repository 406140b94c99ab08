package manage

import (
	"fmt"
	"time"
)

// Config token and code lifetimes plus the redemption retry policy
type Config struct {
	// CodeExp authorization code lifetime
	CodeExp time.Duration
	// AccessTokenExp access token lifetime
	AccessTokenExp time.Duration
	// RefreshTokenExp refresh token lifetime; must exceed AccessTokenExp
	RefreshTokenExp time.Duration
	// CodeLookupAttempts bounds the store lookups made while redeeming a code
	CodeLookupAttempts int
	// CodeLookupDelay fixed pause between lookups
	CodeLookupDelay time.Duration
	// CheckAccessRecord makes every validation require the persisted access
	// token record, so logout revokes access tokens immediately
	CheckAccessRecord bool
}

// default configs
var (
	DefaultCodeExp            = 10 * time.Minute
	DefaultAccessTokenExp     = time.Hour
	DefaultRefreshTokenExp    = 30 * 24 * time.Hour
	DefaultCodeLookupAttempts = 3
	DefaultCodeLookupDelay    = 100 * time.Millisecond
)

// NewConfig returns the default lifetimes with access record checks enabled.
func NewConfig() *Config {
	return &Config{
		CodeExp:            DefaultCodeExp,
		AccessTokenExp:     DefaultAccessTokenExp,
		RefreshTokenExp:    DefaultRefreshTokenExp,
		CodeLookupAttempts: DefaultCodeLookupAttempts,
		CodeLookupDelay:    DefaultCodeLookupDelay,
		CheckAccessRecord:  true,
	}
}

// Validate fills zero values with defaults and checks the lifetime ordering.
func (c *Config) Validate() error {
	if c.CodeExp <= 0 {
		c.CodeExp = DefaultCodeExp
	}
	if c.AccessTokenExp <= 0 {
		c.AccessTokenExp = DefaultAccessTokenExp
	}
	if c.RefreshTokenExp <= 0 {
		c.RefreshTokenExp = DefaultRefreshTokenExp
	}
	if c.CodeLookupAttempts <= 0 {
		c.CodeLookupAttempts = 1
	}
	if c.CodeLookupDelay < 0 {
		c.CodeLookupDelay = 0
	}
	if c.AccessTokenExp >= c.RefreshTokenExp {
		return fmt.Errorf("access token lifetime %s must be shorter than refresh token lifetime %s", c.AccessTokenExp, c.RefreshTokenExp)
	}
	return nil
}
