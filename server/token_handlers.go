package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/authcode-service/dto"
	oerrors "github.com/legit-games/authcode-service/errors"
)

// HandleValidate answers whether access_token is a live access token. It
// never refreshes; an expired or revoked token is simply reported invalid.
func (s *Server) HandleValidate(c *gin.Context) {
	var form dto.ValidateForm
	if err := c.ShouldBind(&form); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", oerrors.ErrValidation, err))
		return
	}
	c.Header("Cache-Control", "no-store")

	v, err := s.Manager.ValidateAccess(c.Request.Context(), form.AccessToken, "")
	if err != nil {
		if oerrors.Is(err, oerrors.ErrStorageFailure) {
			s.abortWithError(c, err)
			return
		}
		s.log.Debugw("introspected token is not valid", "error", err)
		c.JSON(http.StatusOK, dto.ValidateResponse{Valid: false})
		return
	}
	exp := v.Claims.ExpiresAt.Time
	c.JSON(http.StatusOK, dto.ValidateResponse{
		Valid:     true,
		UserID:    v.Claims.UserID,
		ClientID:  v.Claims.ClientID,
		ExpiresAt: &exp,
	})
}

// HandleLogout revokes whatever the cookies reference, clears them and ends
// the login session. It succeeds with stale or missing cookies.
func (s *Server) HandleLogout(c *gin.Context) {
	access, _ := c.Cookie(AccessTokenCookie)
	refresh, _ := c.Cookie(RefreshTokenCookie)

	ctx := c.Request.Context()
	if err := s.Manager.Revoke(ctx, access, refresh); err != nil {
		s.log.Errorw("revoke on logout failed", "error", err)
	}
	s.clearCookie(c, AccessTokenCookie)
	s.clearCookie(c, RefreshTokenCookie)
	s.clearCookie(c, StateCookie)
	if err := s.sessions.Destroy(ctx, c.Writer, c.Request); err != nil {
		s.log.Warnw("destroy session failed", "error", err)
	}
	c.Redirect(http.StatusFound, loginPath)
}

// HandleDashboard greets the user the token gate resolved. Clients asking
// for JSON get the profile instead of the page.
func (s *Server) HandleDashboard(c *gin.Context) {
	user, err := s.stores.Users.GetByID(c.Request.Context(), GetUserIDFromContext(c))
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: get user: %v", oerrors.ErrStorageFailure, err))
		return
	}
	c.Header("Cache-Control", "no-store")
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, dto.FromUser(user))
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", dashboardPage{Title: "Dashboard", FirstName: user.FirstName})
}
