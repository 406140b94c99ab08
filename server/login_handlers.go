package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/authcode-service/authn"
	"github.com/legit-games/authcode-service/dto"
	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
	"golang.org/x/oauth2"
)

// Fixed locations of the first-party client created at registration.
const (
	defaultRedirectURI = "/callback"
	defaultLandingPage = "/dashboard"
	authorizePath      = "/authorize"
	loginPath          = "/login"
)

// HandleLoginPage renders the credential form with a fresh CSRF token.
func (s *Server) HandleLoginPage(c *gin.Context) {
	token, err := s.csrf.Issue(c)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: issue csrf token: %v", oerrors.ErrStorageFailure, err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "login.html", loginPage{Title: "Sign in", CSRFToken: token})
}

// HandleLogin checks the CSRF token and the credentials, binds the user to
// the session, issues a new state and sends the browser to /authorize for
// the user's default client.
func (s *Server) HandleLogin(c *gin.Context) {
	if !s.csrf.Verify(c, c.PostForm("csrf_token")) {
		s.abortWithError(c, fmt.Errorf("%w: login csrf token", oerrors.ErrStateMismatch))
		return
	}
	var form dto.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", oerrors.ErrValidation, err))
		return
	}

	ctx := c.Request.Context()
	id, err := s.authenticator.Verify(ctx, authn.Credential{Username: form.Username, Password: form.Password})
	if err != nil {
		if oerrors.Is(err, oerrors.ErrInvalidCredentials) {
			s.log.Infow("login failed", "username", form.Username)
			c.Redirect(http.StatusFound, loginPath)
			return
		}
		s.abortWithError(c, err)
		return
	}

	cli, err := s.stores.Clients.GetByOwnerAndName(ctx, id.UserID, models.DefaultClientName(id.UserID))
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			s.abortWithError(c, fmt.Errorf("%w: user %s has no default client", oerrors.ErrUnauthorizedClient, id.UserID))
			return
		}
		s.abortWithError(c, fmt.Errorf("%w: get default client: %v", oerrors.ErrStorageFailure, err))
		return
	}

	sess, err := startSession(s.sessions, c)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: start session: %v", oerrors.ErrStorageFailure, err))
		return
	}
	sess.Set(sessionUserKey, id.UserID)
	if err := sess.Save(); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: save session: %v", oerrors.ErrStorageFailure, err))
		return
	}

	state, err := s.issueState(c)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: issue state: %v", oerrors.ErrStorageFailure, err))
		return
	}

	conf := &oauth2.Config{
		ClientID:    cli.ID,
		RedirectURL: cli.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: authorizePath},
	}
	s.log.Infow("login succeeded", "user_id", id.UserID, "client_id", cli.ID)
	c.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// HandleRegisterPage renders the sign-up form.
func (s *Server) HandleRegisterPage(c *gin.Context) {
	s.renderRegister(c, http.StatusOK, "")
}

func (s *Server) renderRegister(c *gin.Context, status int, msg string) {
	token, err := s.csrf.Issue(c)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: issue csrf token: %v", oerrors.ErrStorageFailure, err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(status, "register.html", registerPage{Title: "Create an account", CSRFToken: token, Error: msg})
}

// HandleRegister creates the user and its default client, then sends the
// browser to the login page.
func (s *Server) HandleRegister(c *gin.Context) {
	if !s.csrf.Verify(c, c.PostForm("csrf_token")) {
		s.abortWithError(c, fmt.Errorf("%w: register csrf token", oerrors.ErrStateMismatch))
		return
	}
	var form dto.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		s.log.Infow("registration rejected", "error", err)
		s.renderRegister(c, http.StatusBadRequest, "Please fill in every field with a valid value.")
		return
	}
	if err := authn.ValidatePassword(form.Password); err != nil {
		s.renderRegister(c, http.StatusBadRequest, "Password must be at least 8 letters and digits, with at least one of each.")
		return
	}

	hash, err := authn.HashPassword(form.Password)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: hash password: %v", oerrors.ErrStorageFailure, err))
		return
	}
	ctx := c.Request.Context()
	user := &models.User{
		ID:           models.NewID(),
		Username:     form.Username,
		Email:        form.Email,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		DateOfBirth:  form.Date,
		PasswordHash: hash,
		Role:         models.DefaultRole,
	}
	if err := s.stores.Users.Create(ctx, user); err != nil {
		if oerrors.Is(err, store.ErrDuplicate) {
			s.renderRegister(c, http.StatusBadRequest, "Username or email is already taken.")
			return
		}
		s.abortWithError(c, fmt.Errorf("%w: create user: %v", oerrors.ErrStorageFailure, err))
		return
	}

	secret, err := generates.RandomHex(generates.SecretBytes)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: client secret: %v", oerrors.ErrStorageFailure, err))
		return
	}
	cli := &models.Client{
		ID:          models.NewID(),
		Secret:      secret,
		Name:        models.DefaultClientName(user.ID),
		RedirectURI: defaultRedirectURI,
		LandingPage: defaultLandingPage,
		OwnerID:     user.ID,
	}
	if err := s.stores.Clients.Create(ctx, cli); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: create default client: %v", oerrors.ErrStorageFailure, err))
		return
	}

	s.log.Infow("user registered", "user_id", user.ID, "client_id", cli.ID)
	c.Redirect(http.StatusFound, loginPath)
}
