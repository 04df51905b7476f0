package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin access to the HTTP API and MCP endpoint.
type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
}

// DefaultCORSConfig allows any origin with credentials. Suitable for a
// localhost tool; restrict AllowOrigins when exposing the server.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	}
}

var corsAllowMethods = strings.Join([]string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}, ", ")

var corsAllowHeaders = strings.Join([]string{
	"Origin",
	"Content-Type",
	"Accept",
	"Authorization",
	"X-Requested-With",
	"Mcp-Session-Id",
	"Last-Event-ID",
}, ", ")

var corsExposeHeaders = strings.Join([]string{
	"Content-Length",
	"Content-Type",
	"Mcp-Session-Id",
}, ", ")

// CORSMiddleware answers preflight requests and stamps CORS headers on
// actual responses. Browser-based MCP clients need Mcp-Session-Id both
// allowed and exposed, so it is always in those lists.
func CORSMiddleware(config *CORSConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultCORSConfig()
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed := corsAllowOrigin(config, origin); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
			c.Header("Access-Control-Max-Age", "86400")
			if config.AllowCredentials && origin != "" {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// corsAllowOrigin resolves the Access-Control-Allow-Origin value for a
// request, or "" when none should be sent. A credentialed wildcard must
// echo the concrete origin; browsers reject a literal "*" on credentialed
// requests. Without an Origin header only the wildcard form applies.
func corsAllowOrigin(config *CORSConfig, origin string) string {
	for _, allowed := range config.AllowOrigins {
		if allowed == "*" {
			if origin != "" && config.AllowCredentials {
				return origin
			}
			return "*"
		}
		if origin != "" && allowed == origin {
			return origin
		}
	}
	return ""
}
