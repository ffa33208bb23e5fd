// Package server wires the Brainy API process together: configuration,
// logging, the PostgreSQL pool and migrations, the auth services, the
// expired-token sweeper and the HTTP server, with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/auth"
	"github.com/dmitrijs2005/brainy/internal/server/config"
	"github.com/dmitrijs2005/brainy/internal/server/httpapi"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/brainy/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ephemeralSecretBytes is the size of the signing secret generated in
// debug posture when none is configured.
const ephemeralSecretBytes = 32

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repos       repomanager.RepositoryManager
	authService *services.AuthService
}

// openDB opens and pings the PostgreSQL pool. Tests replace it.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// prepareSecret fails when no signing secret is configured outside debug
// posture. In debug posture a random per-process secret is generated, so
// tokens do not survive a restart.
func prepareSecret(ctx context.Context, c *config.Config, logger logging.Logger) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SecretKey != "" {
		return nil
	}
	secret, err := common.MakeRandHexString(ephemeralSecretBytes)
	if err != nil {
		return fmt.Errorf("generate signing secret: %w", err)
	}
	c.SecretKey = secret
	logger.Warn(ctx, "no signing secret configured, using an ephemeral one (debug mode only)")
	return nil
}

// NewApp validates c, connects to the database, optionally applies
// migrations and builds the services. The returned App owns the pool.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.Debug)

	if err := prepareSecret(ctx, c, logger); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if c.RunMigrations {
		if err := repos.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		logger.Info(ctx, "Migrations applied")
	}

	codec, err := auth.NewCodec(c.SecretKey, nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	access := auth.NewAccessTokens(codec, c.AccessTokenTTL, nil, logger.With("module", "access_tokens"))

	svc := services.NewAuthService(dbx.NewSQLDatabase(db, nil), repos, access, c, logger.With("module", "auth_service"))

	return &App{config: c, logger: logger, db: db, repos: repos, authService: svc}, nil
}

// AuthService returns the orchestrator, for use by operator tooling.
func (app *App) AuthService() *services.AuthService {
	return app.authService
}

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.authService, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and sweeps expired tokens until ctx is cancelled or a
// termination signal arrives, then closes the pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "debug", app.config.Debug)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.authService.RunSweeper(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "closing database failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

// Migrate applies the embedded migrations to the database in c without
// building the rest of the application. It needs no signing secret.
func Migrate(ctx context.Context, c *config.Config) error {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	return repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db)
}
