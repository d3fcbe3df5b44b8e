// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	authCoordinator "github.com/allisson/flexauth/internal/auth/coordinator"
	authHTTP "github.com/allisson/flexauth/internal/auth/http"
	"github.com/allisson/flexauth/internal/config"
	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	cryptoService "github.com/allisson/flexauth/internal/crypto/service"
	"github.com/allisson/flexauth/internal/database"
	"github.com/allisson/flexauth/internal/dek"
	appHTTP "github.com/allisson/flexauth/internal/http"
	"github.com/allisson/flexauth/internal/mailer"
	"github.com/allisson/flexauth/internal/metrics"
	"github.com/allisson/flexauth/internal/overview"
	overviewHTTP "github.com/allisson/flexauth/internal/overview/http"
	"github.com/allisson/flexauth/internal/password"
	passwordHTTP "github.com/allisson/flexauth/internal/password/http"
	sessionHTTP "github.com/allisson/flexauth/internal/session/http"
	sessionStore "github.com/allisson/flexauth/internal/session/store"
	"github.com/allisson/flexauth/internal/token"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
	userHTTP "github.com/allisson/flexauth/internal/user/http"
	userStore "github.com/allisson/flexauth/internal/user/store"
)

// Container holds all application dependencies and provides methods to
// access them. It follows the lazy initialization pattern from the teacher
// repo — components are created on first access, guarded by sync.Once so
// concurrent accessors never build the same dependency twice.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *mongo.Database
	kek    cryptoDomain.KEK

	// Crypto
	aeadManager    cryptoService.AEADManager
	cryptoSvc      cryptoService.CryptoService
	keyProvisioner cryptoService.KeyProvisioner

	// Stores
	dekStore     *dek.Store
	userStoreP   *userStore.Store
	sessionStore *sessionStore.Store

	// Domain services
	passwordSvc *password.Service
	tokenSvc    *token.Service
	mailerSvc   mailer.Mailer

	// Metrics
	metricsProvider  *metrics.Provider
	businessMetrics  metrics.BusinessMetrics
	coordinator      authCoordinator.AuthCoordinator
	cleanupWorker    *sessionStore.CleanupWorker
	overviewSvc      *overview.Service

	// HTTP
	authHandler     *authHTTP.Handler
	sessionHandler  *sessionHTTP.Handler
	userHandler     *userHTTP.Handler
	passwordHandler *passwordHTTP.Handler
	overviewHandler *overviewHTTP.Handler
	httpServer      *appHTTP.Server
	metricsServer   *appHTTP.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	dbInit               sync.Once
	kekInit              sync.Once
	cryptoSvcInit        sync.Once
	dekStoreInit         sync.Once
	userStoreInit        sync.Once
	sessionStoreInit     sync.Once
	passwordSvcInit      sync.Once
	tokenSvcInit         sync.Once
	mailerInit           sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	coordinatorInit      sync.Once
	cleanupWorkerInit    sync.Once
	overviewSvcInit      sync.Once
	authHandlerInit      sync.Once
	sessionHandlerInit   sync.Once
	userHandlerInit      sync.Once
	passwordHandlerInit  sync.Once
	overviewHandlerInit  sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the MongoDB database handle, connecting on first access.
func (c *Container) DB(ctx context.Context) (*mongo.Database, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = database.Connect(ctx, database.Config{
			URI:            c.config.MongoURI,
			Database:       c.config.MongoDatabase,
			ConnectTimeout: c.config.StoreTimeout,
		})
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// KEK returns the resolved server key-encryption-key, decoding SERVER_KEK
// (possibly KMS-wrapped) on first access.
func (c *Container) KEK(ctx context.Context) (cryptoDomain.KEK, error) {
	c.kekInit.Do(func() {
		c.keyProvisioner = cryptoService.NewKeyProvisioner()
		kek, err := c.keyProvisioner.Resolve(ctx, c.config.ServerKEK)
		if err != nil {
			c.initErrors["kek"] = err
			return
		}
		c.kek = kek
	})
	if storedErr, exists := c.initErrors["kek"]; exists {
		return "", storedErr
	}
	return c.kek, nil
}

// CryptoService returns the envelope-encryption cipher service.
func (c *Container) CryptoService() cryptoService.CryptoService {
	c.cryptoSvcInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
		c.cryptoSvc = cryptoService.NewCryptoService(c.aeadManager)
	})
	return c.cryptoSvc
}

// DekStore returns the DEK store.
func (c *Container) DekStore(ctx context.Context) (*dek.Store, error) {
	var err error
	c.dekStoreInit.Do(func() {
		c.dekStore, err = c.initDekStore(ctx)
		if err != nil {
			c.initErrors["dekStore"] = err
		}
	})
	if storedErr, exists := c.initErrors["dekStore"]; exists {
		return nil, storedErr
	}
	return c.dekStore, nil
}

// PasswordService returns the password policy/hashing service.
func (c *Container) PasswordService() *password.Service {
	c.passwordSvcInit.Do(func() {
		c.passwordSvc = password.NewService()
	})
	return c.passwordSvc
}

// TokenService returns the id/refresh-token signing service.
func (c *Container) TokenService() (*token.Service, error) {
	var err error
	c.tokenSvcInit.Do(func() {
		c.tokenSvc, err = token.NewService(c.config.PrivateKeyPath, c.config.ServerURL)
		if err != nil {
			c.initErrors["tokenSvc"] = err
		}
	})
	if storedErr, exists := c.initErrors["tokenSvc"]; exists {
		return nil, storedErr
	}
	return c.tokenSvc, nil
}

// Mailer returns the outbound mail transport.
func (c *Container) Mailer() mailer.Mailer {
	c.mailerInit.Do(func() {
		c.mailerSvc = mailer.NewSMTPMailer(c.config.MailName, c.config.Email, c.config.EmailPassword, c.config.SMTPDomain)
	})
	return c.mailerSvc
}

// MetricsProvider returns the OpenTelemetry/Prometheus metrics provider, or
// nil if metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business-operation metrics recorder, falling
// back to a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		provider, providerErr := c.MetricsProvider()
		if providerErr != nil {
			err = providerErr
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// UserStore returns the user store.
func (c *Container) UserStore(ctx context.Context) (*userStore.Store, error) {
	var err error
	c.userStoreInit.Do(func() {
		c.userStoreP, err = c.initUserStore(ctx)
		if err != nil {
			c.initErrors["userStore"] = err
		}
	})
	if storedErr, exists := c.initErrors["userStore"]; exists {
		return nil, storedErr
	}
	return c.userStoreP, nil
}

// SessionStore returns the session store.
func (c *Container) SessionStore(ctx context.Context) (*sessionStore.Store, error) {
	var err error
	c.sessionStoreInit.Do(func() {
		c.sessionStore, err = c.initSessionStore(ctx)
		if err != nil {
			c.initErrors["sessionStore"] = err
		}
	})
	if storedErr, exists := c.initErrors["sessionStore"]; exists {
		return nil, storedErr
	}
	return c.sessionStore, nil
}

// CleanupWorker returns the expired-session sweep worker.
func (c *Container) CleanupWorker(ctx context.Context) (*sessionStore.CleanupWorker, error) {
	var err error
	c.cleanupWorkerInit.Do(func() {
		store, storeErr := c.SessionStore(ctx)
		if storeErr != nil {
			err = storeErr
			return
		}
		c.cleanupWorker = sessionStore.NewCleanupWorker(store, c.config.StoreTimeout*12, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	return c.cleanupWorker, nil
}

// AuthCoordinator returns the sign-up/sign-in coordinator, wrapped with the
// metrics decorator.
func (c *Container) AuthCoordinator(ctx context.Context) (authCoordinator.AuthCoordinator, error) {
	var err error
	c.coordinatorInit.Do(func() {
		c.coordinator, err = c.initAuthCoordinator(ctx)
		if err != nil {
			c.initErrors["coordinator"] = err
		}
	})
	if storedErr, exists := c.initErrors["coordinator"]; exists {
		return nil, storedErr
	}
	return c.coordinator, nil
}

// OverviewService returns the aggregated-counts rollup service.
func (c *Container) OverviewService(ctx context.Context) (*overview.Service, error) {
	var err error
	c.overviewSvcInit.Do(func() {
		users, usersErr := c.UserStore(ctx)
		if usersErr != nil {
			err = usersErr
			return
		}
		sessions, sessionsErr := c.SessionStore(ctx)
		if sessionsErr != nil {
			err = sessionsErr
			return
		}
		c.overviewSvc = overview.NewService(users, sessions)
	})
	if err != nil {
		return nil, err
	}
	return c.overviewSvc, nil
}

// HTTPServer returns the HTTP server with every route wired up.
func (c *Container) HTTPServer(ctx context.Context) (*appHTTP.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer(ctx)
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the standalone Prometheus metrics server, or nil if
// metrics are disabled.
func (c *Container) MetricsServer() (*appHTTP.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		provider, providerErr := c.MetricsProvider()
		if providerErr != nil {
			err = providerErr
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = appHTTP.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources. It should be
// called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	if c.db != nil {
		if err := database.Disconnect(ctx, c.db); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database disconnect: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func (c *Container) initDekStore(ctx context.Context) (*dek.Store, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for dek store: %w", err)
	}
	kek, err := c.KEK(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kek for dek store: %w", err)
	}
	return dek.NewStore(db, c.CryptoService(), kek, c.config.StoreTimeout), nil
}

func (c *Container) initUserStore(ctx context.Context) (*userStore.Store, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user store: %w", err)
	}
	deks, err := c.DekStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get dek store for user store: %w", err)
	}
	sessions, err := c.SessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session store for user store: %w", err)
	}
	return userStore.NewStore(
		db, deks, deks, sessions, c.CryptoService(), c.PasswordService(), c.Mailer(), c.Logger(),
		c.config.StoreTimeout, c.config.ServerURL,
	), nil
}

func (c *Container) initSessionStore(ctx context.Context) (*sessionStore.Store, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for session store: %w", err)
	}
	deks, err := c.DekStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get dek store for session store: %w", err)
	}
	tokenSvc, err := c.TokenService()
	if err != nil {
		return nil, fmt.Errorf("failed to get token service for session store: %w", err)
	}
	// Session store needs a UserStore to refresh tokens and list all
	// sessions; it only needs GetByUID/GetAll, so building the full user
	// store here (without its own SessionStore dependency satisfied yet)
	// would recurse. Instead it gets a sessionUserStoreAdapter, which looks
	// the user store up through the Container on first use.
	return sessionStore.NewStore(db, deks, tokenSvc, sessionUserStoreAdapter{c: c, ctx: ctx}, c.CryptoService(), c.Mailer(), c.Logger(), c.config.StoreTimeout), nil
}

// sessionUserStoreAdapter breaks the SessionStore<->UserStore initialization
// cycle: SessionStore needs UserStore.GetByUID/GetAll, UserStore needs
// SessionStore.DeleteAllForUID. The adapter defers resolution until first
// use, by which point both Container accessors are safe to call (their
// sync.Once guards make the mutual lookup idempotent).
type sessionUserStoreAdapter struct {
	c   *Container
	ctx context.Context
}

func (a sessionUserStoreAdapter) GetByUID(ctx context.Context, uid string) (*userDomain.User, error) {
	users, err := a.c.UserStore(a.ctx)
	if err != nil {
		return nil, err
	}
	return users.GetByUID(ctx, uid)
}

func (a sessionUserStoreAdapter) GetAll(ctx context.Context) ([]*userDomain.User, error) {
	users, err := a.c.UserStore(a.ctx)
	if err != nil {
		return nil, err
	}
	return users.GetAll(ctx)
}

func (c *Container) initAuthCoordinator(ctx context.Context) (authCoordinator.AuthCoordinator, error) {
	users, err := c.UserStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user store for coordinator: %w", err)
	}
	deks, err := c.DekStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get dek store for coordinator: %w", err)
	}
	sessions, err := c.SessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session store for coordinator: %w", err)
	}
	base := authCoordinator.New(users, deks, sessions, c.PasswordService(), c.CryptoService(), c.Logger())

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for coordinator: %w", err)
	}
	return authCoordinator.WithMetrics(base, businessMetrics), nil
}

func (c *Container) initHTTPServer(ctx context.Context) (*appHTTP.Server, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	logger := c.Logger()

	coordinator, err := c.AuthCoordinator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth coordinator for http server: %w", err)
	}
	sessions, err := c.SessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session store for http server: %w", err)
	}
	users, err := c.UserStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user store for http server: %w", err)
	}
	overviewSvc, err := c.OverviewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get overview service for http server: %w", err)
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	c.authHandlerInit.Do(func() { c.authHandler = authHTTP.NewHandler(coordinator, sessions, logger) })
	c.sessionHandlerInit.Do(func() { c.sessionHandler = sessionHTTP.NewHandler(sessions, logger) })
	c.userHandlerInit.Do(func() { c.userHandler = userHTTP.NewHandler(users, logger) })
	c.passwordHandlerInit.Do(func() { c.passwordHandler = passwordHTTP.NewHandler(users, logger) })
	c.overviewHandlerInit.Do(func() { c.overviewHandler = overviewHTTP.NewHandler(overviewSvc, logger) })

	server := appHTTP.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(
		c.config,
		c.authHandler,
		c.sessionHandler,
		c.userHandler,
		c.passwordHandler,
		c.overviewHandler,
		metricsProvider,
		c.config.MetricsNamespace,
	)

	return server, nil
}
