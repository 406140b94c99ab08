package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"github.com/legit-games/authcode-service/authn"
	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/manage"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/store"
	"go.uber.org/zap"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records HTTP traffic and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuthenticator replaces the default bcrypt password authenticator.
func WithAuthenticator(a authn.Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.authenticator = a
		}
	}
}

// NewServer create authorization server
func NewServer(cfg *Config, manager *manage.Manager, stores *store.Stores, key *generates.SigningKey, opts ...Option) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	srv := &Server{
		Config:        cfg,
		Manager:       manager,
		stores:        stores,
		key:           key,
		authenticator: authn.NewPasswordAuthenticator(stores.Users),
		log:           zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.sessions = session.NewManager(
		session.SetCookieName(cfg.SessionCookieName),
		session.SetSecure(cfg.SecureCookies),
	)
	srv.csrf = &CSRFGuard{sessions: srv.sessions}
	return srv
}

// Server Provide authorization server
type Server struct {
	Config        *Config
	Manager       *manage.Manager
	stores        *store.Stores
	key           *generates.SigningKey
	authenticator authn.Authenticator
	sessions      *session.Manager
	csrf          *CSRFGuard
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
}

// abortWithError logs err with its internal detail and answers with the
// generic JSON body of the error it resolves to.
func (s *Server) abortWithError(c *gin.Context, err error) {
	resp := oerrors.Lookup(err)
	fields := []interface{}{"path", c.Request.URL.Path, "status", resp.StatusCode, "error", err}
	if resp.StatusCode >= http.StatusInternalServerError {
		s.log.Errorw("request failed", fields...)
	} else {
		s.log.Infow("request rejected", fields...)
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(resp.StatusCode, gin.H{
		"error":             resp.Error.Error(),
		"error_description": resp.Description,
	})
}

// setCookie writes an httpOnly, SameSite=Lax cookie scoped to the whole site.
func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.Config.SecureCookies, true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	s.setCookie(c, name, "", -1)
}

// currentUser returns the user id bound to the login session, if any.
func (s *Server) currentUser(c *gin.Context) (string, bool) {
	sess, err := startSession(s.sessions, c)
	if err != nil {
		return "", false
	}
	v, ok := sess.Get(sessionUserKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
