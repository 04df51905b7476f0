package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

// corsRouter wires the middleware in front of endpoints shaped like the
// real surface.
func corsRouter(corsConfig *CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(CORSMiddleware(corsConfig))

	router.POST("/mcp", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"result": "success"})
	})
	router.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"running": false})
	})

	return router
}

func doCORS(router *gin.Engine, method, path, origin string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	router := corsRouter(nil) // nil uses default config (allow all origins)

	w := doCORS(router, http.MethodOptions, "/mcp", "http://localhost:5173", map[string]string{
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type, Mcp-Session-Id",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "OPTIONS")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Mcp-Session-Id")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Mcp-Session-Id")
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSMiddlewareActualRequest(t *testing.T) {
	router := corsRouter(nil)

	w := doCORS(router, http.MethodPost, "/mcp", "http://localhost:5173", map[string]string{
		"Content-Type": "application/json",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddlewareWildcardOrigin(t *testing.T) {
	router := corsRouter(&CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
	})

	w := doCORS(router, http.MethodPost, "/mcp", "http://any-origin.com", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// Without credentials the literal "*" is fine
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddlewareWildcardWithCredentials(t *testing.T) {
	router := corsRouter(&CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	})

	w := doCORS(router, http.MethodPost, "/mcp", "http://any-origin.com", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// With credentials the origin must be echoed; browsers reject "*"
	assert.Equal(t, "http://any-origin.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddlewareSpecificOrigins(t *testing.T) {
	config := &CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowCredentials: true,
	}
	router := corsRouter(config)

	t.Run("allowed", func(t *testing.T) {
		for _, origin := range config.AllowOrigins {
			w := doCORS(router, http.MethodPost, "/mcp", origin, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("denied", func(t *testing.T) {
		w := doCORS(router, http.MethodPost, "/mcp", "http://evil-site.com", nil)

		// The request still succeeds (CORS is browser-enforced) but no
		// CORS headers are set
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSMiddlewareNoOriginHeader(t *testing.T) {
	t.Run("wildcard config", func(t *testing.T) {
		w := doCORS(corsRouter(nil), http.MethodPost, "/mcp", "", map[string]string{
			"Content-Type": "application/json",
		})

		// Non-browser clients get the wildcard form
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("specific origins", func(t *testing.T) {
		router := corsRouter(&CORSConfig{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowCredentials: true,
		})

		w := doCORS(router, http.MethodPost, "/mcp", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSMiddlewareAllowLists(t *testing.T) {
	router := corsRouter(nil)

	w := doCORS(router, http.MethodOptions, "/api/status", "http://localhost:5173", map[string]string{
		"Access-Control-Request-Method": "GET",
	})

	allowMethods := w.Header().Get("Access-Control-Allow-Methods")
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
		assert.Contains(t, allowMethods, method, "Allow-Methods should include %s", method)
	}

	allowHeaders := w.Header().Get("Access-Control-Allow-Headers")
	for _, header := range []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Mcp-Session-Id"} {
		assert.Contains(t, allowHeaders, header, "Allow-Headers should include %s", header)
	}

	exposeHeaders := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposeHeaders, "Content-Length")
	assert.Contains(t, exposeHeaders, "Content-Type")
	assert.Contains(t, exposeHeaders, "Mcp-Session-Id")
}

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig()

	require.NotNil(t, config)
	assert.Equal(t, []string{"*"}, config.AllowOrigins)
	assert.True(t, config.AllowCredentials)
}
