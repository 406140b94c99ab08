package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/authcode-service/dto"
	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/models"
)

// HandleAuthorize validates the client for the logged-in user. With consent
// on record it issues a code straight away, otherwise it renders the prompt.
func (s *Server) HandleAuthorize(c *gin.Context) {
	userID, ok := s.currentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	var q dto.AuthorizeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", oerrors.ErrValidation, err))
		return
	}
	if err := s.verifyState(c, q.State); err != nil {
		s.abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	cli, err := s.Manager.AuthorizeClient(ctx, userID, q.ClientID, q.RedirectURI)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	granted, err := s.Manager.HasConsent(ctx, userID, cli.ID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if granted {
		s.redirectWithCode(c, userID, cli, q.RedirectURI, q.State)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "authorize.html", authorizePage{
		Title:       "Authorize " + cli.Name,
		ClientID:    cli.ID,
		ClientName:  cli.Name,
		RedirectURI: q.RedirectURI,
		State:       q.State,
	})
}

// HandleAuthorizeDecision records an approval and issues a code. Anything
// but decision=approve is a denial: no consent and no code.
func (s *Server) HandleAuthorizeDecision(c *gin.Context) {
	userID, ok := s.currentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	var form dto.AuthorizeForm
	if err := c.ShouldBind(&form); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", oerrors.ErrValidation, err))
		return
	}
	if err := s.verifyState(c, form.State); err != nil {
		s.abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	cli, err := s.Manager.AuthorizeClient(ctx, userID, form.ClientID, form.RedirectURI)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if !form.Approved() {
		s.abortWithError(c, fmt.Errorf("%w: user %s denied client %s", oerrors.ErrAccessDenied, userID, cli.ID))
		return
	}
	if err := s.Manager.UpsertConsent(ctx, userID, cli.ID, true); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.redirectWithCode(c, userID, cli, form.RedirectURI, form.State)
}

func (s *Server) redirectWithCode(c *gin.Context, userID string, cli *models.Client, redirectURI, state string) {
	ac, err := s.Manager.IssueCode(c.Request.Context(), userID, cli.ID, redirectURI, state)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: redirect uri: %v", oerrors.ErrUnauthorizedClient, err))
		return
	}
	q := u.Query()
	q.Set("code", ac.Code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, u.String())
}

// HandleCallback checks the round-tripped state against the state cookie,
// exchanges the code and stores the token pair in cookies.
func (s *Server) HandleCallback(c *gin.Context) {
	var q dto.CallbackQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", oerrors.ErrValidation, err))
		return
	}
	if err := s.verifyState(c, q.State); err != nil {
		s.abortWithError(c, err)
		return
	}

	pair, err := s.Manager.ExchangeCode(c.Request.Context(), q.Code, q.State)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.setCookie(c, AccessTokenCookie, pair.Access.Token, int(s.Config.AccessTTL.Seconds()))
	s.setCookie(c, RefreshTokenCookie, pair.Refresh.Token, int(s.Config.RefreshTTL.Seconds()))
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, pair.Redirect)
}
