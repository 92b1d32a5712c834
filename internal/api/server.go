// Package api exposes the analysis engine over HTTP: JWT-protected analyze,
// signal and scan endpoints plus health and snapshot queries.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"marketflow/internal/auth"
	"marketflow/internal/engine"
	"marketflow/internal/snapshot"
)

// Credentials is the single API user the server authenticates
type Credentials struct {
	Username     string
	PasswordHash string
}

// Config holds the HTTP server configuration
type Config struct {
	Host           string
	Port           int
	JWTSecret      string
	TokenDuration  time.Duration
	AllowedOrigins []string
}

// Server wires the HTTP layer around the engine facade
type Server struct {
	config      Config
	facade      *engine.Facade
	jwtManager  *auth.JWTManager
	credentials Credentials
	store       *snapshot.Store
	logger      zerolog.Logger
	httpServer  *http.Server
}

// NewServer creates the API server. The snapshot store is optional.
func NewServer(cfg Config, facade *engine.Facade, credentials Credentials, store *snapshot.Store, logger zerolog.Logger) *Server {
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	return &Server{
		config:      cfg,
		facade:      facade,
		jwtManager:  auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration),
		credentials: credentials,
		store:       store,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handleHealth)
	router.POST("/api/auth/login", s.handleLogin)

	protected := router.Group("/api")
	protected.Use(auth.Middleware(s.jwtManager))
	{
		protected.POST("/analyze", s.handleAnalyze)
		protected.GET("/signals/:ticker", s.handleSignals)
		protected.POST("/scan", s.handleScan)
		protected.GET("/explain/:ticker", s.handleExplain)
		protected.GET("/snapshots/:ticker", s.handleSnapshots)
	}
	return router
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
