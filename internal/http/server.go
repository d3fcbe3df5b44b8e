// Package http provides HTTP server implementation and request handlers using Gin web framework.
// The server uses structured logging (slog) and graceful shutdown.
//
// This server uses Gin (github.com/gin-gonic/gin) for HTTP routing while maintaining
// compatibility with the application's existing patterns:
//   - Custom slog-based logging middleware (instead of Gin's default logger)
//   - Gin-compatible error handling utilities (httputil.HandleErrorGin)
//   - Manual http.Server configuration for timeout and graceful shutdown control
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/singleflight"

	authHTTP "github.com/allisson/flexauth/internal/auth/http"
	"github.com/allisson/flexauth/internal/config"
	"github.com/allisson/flexauth/internal/metrics"
	overviewHTTP "github.com/allisson/flexauth/internal/overview/http"
	passwordHTTP "github.com/allisson/flexauth/internal/password/http"
	sessionHTTP "github.com/allisson/flexauth/internal/session/http"
	userHTTP "github.com/allisson/flexauth/internal/user/http"
)

// Server represents the HTTP server.
type Server struct {
	db       *mongo.Database
	server   *http.Server
	logger   *slog.Logger
	router   *gin.Engine
	reqGroup singleflight.Group
}

// NewServer creates a new HTTP server. db is used only for the readiness
// probe; every request is handled through the handler packages passed to
// SetupRouter.
func NewServer(
	db *mongo.Database,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with every route spec.md §6 names.
// This method is called during server initialization with all required
// handler dependencies.
func (s *Server) SetupRouter(
	cfg *config.Config,
	authHandler *authHTTP.Handler,
	sessionHandler *sessionHTTP.Handler,
	userHandler *userHTTP.Handler,
	passwordHandler *passwordHTTP.Handler,
	overviewHandler *overviewHTTP.Handler,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	router := gin.New()

	router.Use(RecoveryMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(
		cfg.CORSEnabled,
		cfg.CORSAllowOrigins,
		s.logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"service": "flexauth"}) })
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Every /api route requires the gateway x-api-key, except the HTML
	// reset form registered separately below (spec.md §6).
	apiKeyProtected := router.Group("/api")
	apiKeyProtected.Use(APIKeyMiddleware(cfg.XAPIKey, s.logger))

	signInLimiter := RateLimitMiddleware(cfg.RateLimitPerMinute, s.logger)

	auth := apiKeyProtected.Group("/auth")
	{
		auth.POST("/signup", authHandler.SignUpHandler)
		auth.POST("/signin", signInLimiter, authHandler.SignInHandler)
		auth.POST("/signout", authHandler.SignOutHandler)
	}

	session := apiKeyProtected.Group("/session")
	{
		session.POST("/verify", sessionHandler.VerifyHandler)
		session.POST("/refresh-session", sessionHandler.RefreshHandler)
		session.POST("/revoke", sessionHandler.RevokeHandler)
		session.POST("/revoke-all", sessionHandler.RevokeAllHandler)
		session.POST("/delete", sessionHandler.DeleteHandler)
		session.POST("/delete-all", sessionHandler.DeleteAllHandler)
	}

	user := apiKeyProtected.Group("/user")
	{
		user.POST("/get-all", userHandler.GetAllHandler)
		user.POST("/get-from-email", userHandler.GetFromEmailHandler)
		user.POST("/get-from-id", userHandler.GetFromIDHandler)
		user.POST("/update", userHandler.UpdateHandler)
		user.POST("/update-role", userHandler.UpdateRoleHandler)
		user.POST("/toggle-account-active-status", userHandler.ToggleAccountActiveStatusHandler)
		user.POST("/delete", userHandler.DeleteHandler)
		user.POST("/verify-email-request", userHandler.VerifyEmailRequestHandler)
		user.GET("/verify-email/:id", userHandler.VerifyEmailHandler)
	}

	password := apiKeyProtected.Group("/password")
	{
		password.POST("/reset", passwordHandler.ResetHandler)
		password.POST("/forget-request", signInLimiter, passwordHandler.ForgetRequestHandler)
		password.POST("/forget-reset/:id", passwordHandler.ForgetResetHandler)
	}
	// The HTML reset form is the one /api route exempt from x-api-key.
	router.GET("/api/password/forget-form/:id", passwordHandler.ForgetFormHandler)

	overview := apiKeyProtected.Group("/overview")
	{
		overview.GET("/get-all", overviewHandler.GetAllHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
// Returns nil if SetupRouter has not been called yet.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized - call SetupRouter first")
	}

	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler returns a simple health check response.
func (s *Server) healthHandler(c *gin.Context) {
	v, _, _ := s.reqGroup.Do("health", func() (interface{}, error) {
		return gin.H{"status": "healthy"}, nil
	})
	c.JSON(http.StatusOK, v)
}

type readinessResponse struct {
	StatusCode int
	Body       gin.H
}

// readinessHandler returns a simple readiness check response.
func (s *Server) readinessHandler(c *gin.Context) {
	v, _, _ := s.reqGroup.Do("readiness", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		httpStatus := http.StatusOK

		if s.db == nil {
			s.logger.Error("readiness check failed: database not initialized")
			dbStatus = "error"
			httpStatus = http.StatusServiceUnavailable
		} else if err := s.db.Client().Ping(ctx, nil); err != nil {
			s.logger.Error("readiness check failed: database ping error", slog.Any("err", err))
			dbStatus = "error"
			httpStatus = http.StatusServiceUnavailable
		}

		return readinessResponse{
			StatusCode: httpStatus,
			Body: gin.H{
				"status": map[int]string{
					http.StatusOK:                 "ready",
					http.StatusServiceUnavailable: "not_ready",
				}[httpStatus],
				"components": gin.H{
					"database": dbStatus,
				},
			},
		}, nil
	})

	res := v.(readinessResponse)
	c.JSON(res.StatusCode, res.Body)
}
