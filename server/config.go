package server

import (
	"time"

	"github.com/legit-games/authcode-service/manage"
	"github.com/legit-games/authcode-service/store"
	"go.uber.org/zap"
)

// Cookie names are part of the external interface.
const (
	StateCookie        = "state"
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Config configuration parameters
type Config struct {
	// SecureCookies marks every cookie Secure; enable behind TLS
	SecureCookies bool
	// StateTTL lifetime of the state cookie
	StateTTL time.Duration
	// AccessTTL and RefreshTTL are the token cookie lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SessionCookieName names the login session cookie
	SessionCookieName string
}

// NewConfig create to configuration instance
func NewConfig() *Config {
	return &Config{
		StateTTL:          24 * time.Hour,
		AccessTTL:         manage.DefaultAccessTokenExp,
		RefreshTTL:        manage.DefaultRefreshTokenExp,
		SessionCookieName: "authcode_session",
	}
}

// ServerConfig derives the HTTP layer settings.
func (c *AppConfig) ServerConfig() *Config {
	cfg := NewConfig()
	cfg.SecureCookies = c.HTTP.SecureCookies
	if c.Tokens.AccessTTL > 0 {
		cfg.AccessTTL = c.Tokens.AccessTTL
	}
	if c.Tokens.RefreshTTL > 0 {
		cfg.RefreshTTL = c.Tokens.RefreshTTL
	}
	if c.Session.CookieName != "" {
		cfg.SessionCookieName = c.Session.CookieName
	}
	return cfg
}

// ManagerConfig derives the token lifetimes and redemption policy.
func (c *AppConfig) ManagerConfig() *manage.Config {
	return &manage.Config{
		CodeExp:            c.Tokens.CodeTTL,
		AccessTokenExp:     c.Tokens.AccessTTL,
		RefreshTokenExp:    c.Tokens.RefreshTTL,
		CodeLookupAttempts: c.Tokens.CodeLookupAttempts,
		CodeLookupDelay:    c.Tokens.CodeLookupDelay,
		CheckAccessRecord:  c.Tokens.CheckAccessRecord,
	}
}

// StoreOptions derives the repository backends.
func (c *AppConfig) StoreOptions(log *zap.SugaredLogger) store.Options {
	return store.Options{
		Backend:     c.Storage.Backend,
		BuntPath:    c.Storage.BuntDBPath,
		PostgresDSN: c.Storage.PostgresDSN,
		ValkeyAddr:  c.Storage.ValkeyAddr,
		RedisAddr:   c.Storage.RedisAddr,
		KeyPrefix:   c.Storage.KeyPrefix,
		Logger:      log,
	}
}
