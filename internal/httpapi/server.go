// Package httpapi exposes the bridge over HTTP, with a websocket for events.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/ipc"
)

var log = logging.MustGetLogger("http")

const shutdownTimeout = 5 * time.Second

// Options configure the HTTP bridge
type Options struct {
	Addr           string
	AllowedOrigins []string
	RequireAuth    bool
}

// Server serves the bridge API
type Server struct {
	opts        Options
	authManager *auth.Manager
	handler     *bridge.Handler
	dispatcher  *ipc.Dispatcher
	engine      *gin.Engine
	upgrader    websocket.Upgrader

	allowedOrigins map[string]bool
	allowedHosts   map[string]bool

	mu    sync.Mutex
	peers map[*ipc.Peer]*websocket.Conn
}

// NewServer creates the HTTP bridge. The dispatcher handles request frames
// sent over the event websocket.
func NewServer(opts Options, authManager *auth.Manager, handler *bridge.Handler, dispatcher *ipc.Dispatcher) *Server {
	s := &Server{
		opts:           opts,
		authManager:    authManager,
		handler:        handler,
		dispatcher:     dispatcher,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		peers:          make(map[*ipc.Peer]*websocket.Conn),
	}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(s.corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/pair", s.handlePair)

	api := r.Group("/api", s.authMiddleware())
	{
		api.GET("/methods", s.handleMethods)
		api.POST("/methods/:method", s.handleCall)
		api.GET("/events", s.handleEvents)
	}

	return r
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on opts.Addr until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	srv := &http.Server{Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.Infof("Listening on http://%s", listener.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warningf("Shutdown: %v", err)
	}

	// Hijacked websocket connections outlive Shutdown.
	s.mu.Lock()
	for p, conn := range s.peers {
		p.Close()
		conn.Close()
	}
	s.mu.Unlock()

	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware answers preflight requests from allowed origins.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && s.checkOrigin(c.Request) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware accepts a pairing token as a Bearer header or a token
// query parameter. Browsers cannot set headers on websocket upgrades.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c.Request)
		c.Set("token", token)

		if !s.opts.RequireAuth {
			c.Next()
			return
		}

		err := s.authManager.Authenticate(token, c.ClientIP())
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, auth.ErrLockedOut):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ipc.NewErrorResponse(ipc.CodeLockedOut, err.Error()))
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, ipc.NewErrorResponse(ipc.CodeUnauthorized, "unauthorized"))
		}
	}
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// checkOrigin allows the configured origins, or else same-host and loopback
// pages. Requests without an Origin header are not from a browser.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := parsed.Host
	if host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
