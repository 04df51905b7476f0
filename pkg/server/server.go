// Package server exposes the organizer over HTTP: a JSON API under /api,
// a websocket event stream, and an MCP (Model Context Protocol) endpoint
// at /mcp so agent clients can drive the same pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/home"
	"github.com/tidyfolder/tidyfolder/pkg/index"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
	"github.com/tidyfolder/tidyfolder/pkg/watcher"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("server")
}

// Options wires the server to the core. Organizer, Store, and Bus are
// required; the Bus must be the same instance the organizer publishes to
// or the event stream stays silent.
type Options struct {
	Config    *home.Config
	Organizer *organizer.Organizer
	Store     *index.Store
	Analyzer  analyzer.Analyzer
	Bus       *events.Bus
	Watch     watcher.Config
	CORS      *CORSConfig

	// AutoWatch starts the folder watcher as soon as the server is up.
	AutoWatch bool
}

// Server owns the HTTP surface and the lifecycle of the folder watcher.
type Server struct {
	cfg       *home.Config
	org       *organizer.Organizer
	store     *index.Store
	analyzer  analyzer.Analyzer
	bus       *events.Bus
	watchCfg  watcher.Config
	cors      *CORSConfig
	autoWatch bool

	mu    sync.Mutex
	watch *watcher.Watcher
}

// New creates a server. The watcher is not started until Run (with
// AutoWatch) or a POST to /api/watcher/start.
func New(opts Options) *Server {
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.New()
	}
	return &Server{
		cfg:       opts.Config,
		org:       opts.Organizer,
		store:     opts.Store,
		analyzer:  opts.Analyzer,
		bus:       opts.Bus,
		watchCfg:  opts.Watch,
		cors:      opts.CORS,
		autoWatch: opts.AutoWatch,
	}
}

// Router builds the gin engine with all routes mounted. Split from Run so
// tests can drive the API through httptest without a listener.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(CORSMiddleware(s.cors))

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/organize", s.handleOrganize)
		api.POST("/undo", s.handleUndo)
		api.GET("/history", s.handleHistory)
		api.DELETE("/history", s.handleClearHistory)
		api.POST("/watcher/start", s.handleWatcherStart)
		api.POST("/watcher/stop", s.handleWatcherStop)
		api.GET("/events", s.handleEvents)
	}

	mcpHTTP := mcpserver.NewStreamableHTTPServer(
		s.MCPServer(),
		mcpserver.WithStateLess(true),
	)
	router.Any("/mcp", gin.WrapH(mcpHTTP))

	return router
}

// MCPServer builds the MCP tool server. Router mounts it over streamable
// HTTP; cmd/mcp-server serves the same tools over stdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	m := mcpserver.NewMCPServer(
		"tidyfolder",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
	)
	registerMCPTools(m, s)
	return m
}

// Run serves until ctx is cancelled. The HTTP listener and the watcher
// live under one errgroup so a failure in either tears down both.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	g, gCtx := errgroup.WithContext(ctx)

	if s.autoWatch {
		if err := s.startWatch(s.watchCfg.Mode); err != nil {
			return err
		}
	}

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":         addr,
			"mcp_endpoint": "/mcp",
			"autoWatch":    s.autoWatch,
		}).Info("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.stopWatch()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
		log.Info("Server stopped")
		return nil
	})

	return g.Wait()
}

// startWatch creates and starts a watcher with the requested mode. A mode
// change replaces the instance; the folder set and timing stay as
// configured.
func (s *Server) startWatch(mode watcher.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == "" {
		mode = watcher.ModeWatchOnly
	}
	if s.watch == nil || s.watch.Status().Mode != mode {
		if s.watch != nil && s.watch.Running() {
			return watcher.ErrAlreadyRunning
		}
		cfg := s.watchCfg
		cfg.Mode = mode
		s.watch = watcher.New(cfg, s.org, s.bus)
	}
	return s.watch.Start()
}

func (s *Server) stopWatch() {
	s.mu.Lock()
	w := s.watch
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// watchStatus reports the current watcher state, or an idle snapshot of
// the configured folders when no watcher has been started yet.
func (s *Server) watchStatus() watcher.Status {
	s.mu.Lock()
	w := s.watch
	s.mu.Unlock()
	if w != nil {
		return w.Status()
	}
	mode := s.watchCfg.Mode
	if mode == "" {
		mode = watcher.ModeWatchOnly
	}
	return watcher.Status{
		Mode:    mode,
		Folders: append([]watcher.Folder(nil), s.watchCfg.Folders...),
	}
}

// requestLogger logs each request with the resolved client IP. Proxies in
// front of the server rewrite RemoteAddr, so X-Real-IP and the first hop
// of X-Forwarded-For take precedence.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		clientIP := c.Request.RemoteAddr
		forwarded := false
		if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
			clientIP = realIP
			forwarded = true
		} else if forwardedFor := c.GetHeader("X-Forwarded-For"); forwardedFor != "" {
			clientIP = forwardedFor
			for i := 0; i < len(forwardedFor); i++ {
				if forwardedFor[i] == ',' {
					clientIP = forwardedFor[:i]
					break
				}
			}
			forwarded = true
		}

		if logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logrus.Fields{
				"method":   c.Request.Method,
				"path":     path,
				"query":    c.Request.URL.RawQuery,
				"clientIP": clientIP,
			}).Debug("Incoming request")
		}

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(startTime).Milliseconds(),
			"clientIP": clientIP,
		}
		if forwarded {
			fields["forwarded"] = true
		}
		log.WithFields(fields).Info("Request completed")
	}
}
