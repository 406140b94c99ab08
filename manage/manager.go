package manage

import (
	"time"

	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/store"
	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records the flow on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager create to authorization management instance. The signing key is
// captured once; the manager never reloads it.
func NewManager(cfg *Config, key *generates.SigningKey, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:        cfg,
		accessGen:  generates.NewJWTAccessGenerate(key),
		codeGen:    generates.NewAuthorizeGenerate(),
		refreshGen: generates.NewRefreshGenerate(),
		now:        time.Now,
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Manager provide authorization management
type Manager struct {
	cfg        *Config
	clients    store.ClientStore
	consents   store.ConsentStore
	codes      store.CodeStore
	access     store.AccessTokenStore
	refresh    store.RefreshTokenStore
	accessGen  *generates.JWTAccessGenerate
	codeGen    *generates.OpaqueGenerate
	refreshGen *generates.OpaqueGenerate
	now        func() time.Time
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// Config returns the lifetimes in effect.
func (m *Manager) Config() Config { return *m.cfg }

// MapClientStorage mapping the client store interface
func (m *Manager) MapClientStorage(s store.ClientStore) { m.clients = s }

// MapConsentStorage mapping the consent store interface
func (m *Manager) MapConsentStorage(s store.ConsentStore) { m.consents = s }

// MapCodeStorage mapping the authorization code store interface
func (m *Manager) MapCodeStorage(s store.CodeStore) { m.codes = s }

// MapAccessTokenStorage mapping the access token store interface
func (m *Manager) MapAccessTokenStorage(s store.AccessTokenStore) { m.access = s }

// MapRefreshTokenStorage mapping the refresh token store interface
func (m *Manager) MapRefreshTokenStorage(s store.RefreshTokenStore) { m.refresh = s }

// MapStores maps every repository of the bundle at once.
func (m *Manager) MapStores(s *store.Stores) {
	m.MapClientStorage(s.Clients)
	m.MapConsentStorage(s.Consents)
	m.MapCodeStorage(s.Codes)
	m.MapAccessTokenStorage(s.Access)
	m.MapRefreshTokenStorage(s.Refresh)
}
