package server

import (
	"crypto/subtle"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
)

const (
	sessionUserKey    = "user_id"
	sessionCSRFKey    = "csrf_token"
	sessionContextKey = "authcode.session"
)

// startSession loads the login session once per request. go-session issues a
// new cookie on every Start without one, so later calls reuse the first store.
func startSession(m *session.Manager, c *gin.Context) (session.Store, error) {
	if v, ok := c.Get(sessionContextKey); ok {
		if sess, ok := v.(session.Store); ok {
			return sess, nil
		}
	}
	sess, err := m.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		return nil, err
	}
	c.Set(sessionContextKey, sess)
	return sess, nil
}

// CSRFGuard binds a single-use anti-forgery token to the login session.
type CSRFGuard struct {
	sessions *session.Manager
}

// Issue stores a fresh token in the session and returns it for the form.
func (g *CSRFGuard) Issue(c *gin.Context) (string, error) {
	sess, err := startSession(g.sessions, c)
	if err != nil {
		return "", err
	}
	token, err := generates.RandomHex(generates.StateBytes)
	if err != nil {
		return "", err
	}
	sess.Set(sessionCSRFKey, token)
	if err := sess.Save(); err != nil {
		return "", err
	}
	return token, nil
}

// Verify consumes the session token and compares it with presented.
// A second Verify for the same token always fails.
func (g *CSRFGuard) Verify(c *gin.Context, presented string) bool {
	sess, err := startSession(g.sessions, c)
	if err != nil {
		return false
	}
	v := sess.Delete(sessionCSRFKey)
	_ = sess.Save()
	expected, ok := v.(string)
	if !ok || expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// issueState sets a new state cookie, replacing any earlier one. The state
// must survive the authorize redirect, so it lives in its own cookie rather
// than in the login session.
func (s *Server) issueState(c *gin.Context) (string, error) {
	state, err := generates.RandomHex(generates.StateBytes)
	if err != nil {
		return "", err
	}
	s.setCookie(c, StateCookie, state, int(s.Config.StateTTL.Seconds()))
	return state, nil
}

// verifyState compares presented with the state cookie, exactly and case-sensitively.
func (s *Server) verifyState(c *gin.Context, presented string) error {
	expected, err := c.Cookie(StateCookie)
	if err != nil || expected == "" {
		return fmt.Errorf("%w: no state cookie", oerrors.ErrStateMismatch)
	}
	if presented == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return oerrors.ErrStateMismatch
	}
	return nil
}
