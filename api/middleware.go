package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/meghashyamc/iiifsearch/api/handlers"
	"github.com/meghashyamc/iiifsearch/logger"
)

const (
	headerRequestID = "X-Request-Id"
	headerBearer    = "Bearer"
	headerSiteID    = "X-Madoc-Site-Id"

	siteURNPrefix = "urn:madoc:site:"
)

func loggingMiddleware(logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", requestID)
	}
}

// siteMiddleware scopes requests carrying a token to one site. Tokens are
// verified by the gateway in front of this service, so only the claims are
// read here. A user token names its site in "iss"; a service token acts for
// the site given in the X-Madoc-Site-Id header.
func siteMiddleware(logger logger.Logger) gin.HandlerFunc {
	parser := jwt.NewParser()
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims := jwt.MapClaims{}
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			logger.Warn("could not parse bearer token", "err", err.Error())
			c.Next()
			return
		}

		if siteURN := siteURNFromClaims(claims, c.GetHeader(headerSiteID)); siteURN != "" {
			c.Set(handlers.ContextKeySiteURN, siteURN)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(headerBearer)); token != "" {
		return token
	}
	authorization := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(authorization, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func siteURNFromClaims(claims jwt.MapClaims, siteID string) string {
	if service, _ := claims["service"].(bool); service {
		if siteID == "" {
			return ""
		}
		return siteURNPrefix + siteID
	}
	issuer, err := claims.GetIssuer()
	if err != nil {
		return ""
	}
	return issuer
}
