package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	oerrors "github.com/legit-games/authcode-service/errors"
)

// TokenMiddleware gates a route on the access_token cookie. An expired
// access token is replaced using the refresh_token cookie; when that is no
// longer usable the cookies are cleared and the browser is sent to /login.
func (s *Server) TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		access, _ := c.Cookie(AccessTokenCookie)
		refresh, _ := c.Cookie(RefreshTokenCookie)

		v, err := s.Manager.ValidateAccess(c.Request.Context(), access, refresh)
		if err != nil {
			if oerrors.Is(err, oerrors.ErrRefreshInvalidOrExpired) {
				s.log.Infow("refresh token unusable, re-authentication required", "path", c.Request.URL.Path)
				s.clearCookie(c, AccessTokenCookie)
				s.clearCookie(c, RefreshTokenCookie)
				c.Redirect(http.StatusFound, loginPath)
				c.Abort()
				return
			}
			s.abortWithError(c, err)
			return
		}
		if v.Rotated {
			s.setCookie(c, AccessTokenCookie, v.AccessToken, int(s.Config.AccessTTL.Seconds()))
		}

		c.Set("user_id", v.Claims.UserID)
		c.Set("client_id", v.Claims.ClientID)
		c.Set("token_claims", v.Claims)
		c.Next()
	}
}

// GetUserIDFromContext retrieves the user ID from the gin context.
// Returns empty string if not found.
func GetUserIDFromContext(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
