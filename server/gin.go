package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewGinEngine builds the Gin router for the browser flow, the introspection
// endpoint and the operational routes.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	loadTemplates(r)

	r.GET("/", s.HandleLoginPage)
	r.GET("/login", s.HandleLoginPage)
	r.POST("/login", s.HandleLogin)
	r.GET("/register", s.HandleRegisterPage)
	r.POST("/register", s.HandleRegister)

	r.GET("/authorize", s.HandleAuthorize)
	r.POST("/authorize", s.HandleAuthorizeDecision)
	r.GET("/callback", s.HandleCallback)
	r.POST("/validate", s.HandleValidate)
	r.POST("/logout", s.HandleLogout)

	// Pages behind the token gate
	protected := r.Group("/")
	protected.Use(s.TokenMiddleware())
	protected.GET("/dashboard", s.HandleDashboard)

	r.GET("/.well-known/jwks.json", s.HandleJWKS)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// requestLogger logs every request and records it in the HTTP metrics.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, c.Request.Method, status, elapsed)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", elapsed,
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.log.Errorw("http request", fields...)
			return
		}
		s.log.Infow("http request", fields...)
	}
}

// HandleJWKS publishes the access token verification key.
func (s *Server) HandleJWKS(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, s.key.JWKS())
}
