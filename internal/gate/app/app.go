// Package app wires configuration, stores, services, and the HTTP server
// into a runnable gateway.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	httpapi "github.com/tessara-ic/authgate/internal/gate/http"
	"github.com/tessara-ic/authgate/internal/gate/identity"
	"github.com/tessara-ic/authgate/internal/gate/obs"
	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/internal/gate/store/drivers/memory"
	"github.com/tessara-ic/authgate/internal/gate/store/drivers/redisstore"
	"github.com/tessara-ic/authgate/internal/gate/store/drivers/sqlite"
	"github.com/tessara-ic/authgate/pkg/csrf"
	"github.com/tessara-ic/authgate/pkg/cryptox"
	"github.com/tessara-ic/authgate/pkg/idx"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
	"github.com/tessara-ic/authgate/pkg/slogx"
	"github.com/tessara-ic/authgate/pkg/tokenval"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	signingKeyID = "authgate-1"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	sessions    store.Sessions
	revocations store.Revocations
	provider    identity.Provider
	csrfService *csrf.Service
	limiter     *ratelimit.Limiter

	authService         *service.AuthService
	healthService       *service.HealthService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	obs.Init()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx := context.Background()

	if err := app.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	app.housekeepingService.Start()

	// Establish the initial availability state before taking traffic.
	report := app.healthService.Evaluate(ctx)
	if report.Status != domain.Available {
		app.logger.Warn("starting in non-available state", "status", report.Status)
	}

	app.logger.Info("authgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authgate stopped")
	return nil
}

// initDatabase opens the staff directory, applies migrations, and selects
// the session/revocation drivers.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied")

	if app.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
		})
		app.sessions = redisstore.NewSessions(client)
		app.revocations = redisstore.NewRevocations(client, app.cfg.TokenTTL)
		app.logger.Info("using redis session and revocation state", "addr", app.cfg.RedisAddr)
	} else {
		app.sessions = memory.NewSessions()
		app.revocations = memory.NewRevocations()
		app.logger.Info("using in-memory session and revocation state; a restart logs everyone out")
	}

	return nil
}

func (app *Application) initServices() error {
	var providerOpts []identity.LocalOption
	if app.cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(app.cfg.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("read signing key: %w", err)
		}
		providerOpts = append(providerOpts, identity.WithPrivateKeyPEM(pemKey))
	}
	app.provider = identity.NewLocalProvider(
		app.cfg.Issuer, app.cfg.Audience, signingKeyID, app.cfg.TokenTTL,
		providerOpts...,
	)

	csrfService, err := csrf.New(app.cfg.CSRFSecret)
	if err != nil {
		if app.cfg.Production() {
			// Lockdown path: the health service reports the missing
			// secret; state-changing routes stay closed because CSRF
			// verification always fails.
			app.logger.Error("csrf service misconfigured", "error", err)
		} else {
			app.logger.Warn("csrf secret missing or short, using a generated dev-only secret")
		}
		devSecret, genErr := cryptox.GenerateToken(cryptox.TokenSize256)
		if genErr != nil {
			return fmt.Errorf("generate dev csrf secret: %w", genErr)
		}
		csrfService, err = csrf.New(devSecret)
		if err != nil {
			return fmt.Errorf("init csrf service: %w", err)
		}
	}
	app.csrfService = csrfService

	app.limiter = ratelimit.New()

	app.authService = service.NewAuthService(
		app.db.Users(),
		app.sessions,
		app.revocations,
		app.provider,
		app.limiter,
		app.cfg.SessionTTL,
		app.cfg.TokenTTL,
	)

	app.healthService = service.NewHealthService(
		app.db,
		app.sessions,
		app.revocations,
		app.provider,
		app.csrfService,
		app.limiter,
		service.ConfigCheck{
			Missing:    app.cfg.MissingSecurityConfig(),
			Production: app.cfg.Production(),
		},
		BuildVersion,
	)

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.revocations,
		app.limiter,
		app.authService,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.TokenTTL,
	)

	return nil
}

func (app *Application) initHTTP() {
	guard := &httpapi.Guard{
		Validator: tokenval.New(tokenval.Config{
			Issuer:      app.cfg.Issuer,
			Audience:    app.cfg.Audience,
			MaxLifetime: app.cfg.TokenTTL,
		}),
		Provider:    app.provider,
		Sessions:    app.sessions,
		Revocations: app.revocations,
		Limiter:     app.limiter,
		CSRF:        app.csrfService,
	}

	router := httpapi.NewRouter(
		guard,
		app.csrfService,
		app.db,
		BuildVersion,
		app.cfg.Production(),
		app.cfg.SessionTTL,
		app.logger,
	)
	router.AuthService = app.authService
	router.HealthService = app.healthService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// bootstrap creates the first admin when the directory is empty. The TOTP
// secret is logged once; the operator enrolls it in their authenticator
// and restarts are harmless because the directory is no longer empty.
func (app *Application) bootstrap(ctx context.Context) error {
	empty, err := app.db.Users().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	if app.cfg.BootstrapEmail == "" || app.cfg.BootstrapPassword == "" {
		app.logger.Warn("user directory is empty and no bootstrap credentials configured; logins will fail")
		return nil
	}

	hash, err := cryptox.HashPassword(app.cfg.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Tessara AuthGate",
		AccountName: app.cfg.BootstrapEmail,
	})
	if err != nil {
		return fmt.Errorf("generate totp secret: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        app.cfg.BootstrapEmail,
		PasswordHash: hash,
		TOTPSecret:   key.Secret(),
		Role:         domain.RoleAdmin,
	}
	if err := app.db.Users().CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	app.logger.Info("bootstrap admin created",
		"user_id", user.ID,
		"email", slogx.MaskEmail(user.Email),
		"totp_enrollment_url", key.URL(),
	)
	return nil
}
