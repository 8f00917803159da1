// Package app wires configuration into a running client stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/apiguard/internal/admin"
	"github.com/vietddude/apiguard/internal/client"
	"github.com/vietddude/apiguard/internal/core/config"
	"github.com/vietddude/apiguard/internal/errs"
	redisclient "github.com/vietddude/apiguard/internal/infra/redis"
	"github.com/vietddude/apiguard/internal/infra/storage/file"
	"github.com/vietddude/apiguard/internal/infra/storage/postgres"
	"github.com/vietddude/apiguard/internal/infra/transport"
	"github.com/vietddude/apiguard/internal/session"
)

// App holds the wired client stack and its admin server.
type App struct {
	cfg         *config.AppConfig
	Client      *client.Client
	Normalizer  *errs.Normalizer
	Teardown    *session.Teardown
	Store       *session.Store
	Tokens      *session.TokenStore
	Navigator   *session.LocationNavigator
	admin       *admin.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// New creates an App with all dependencies initialized.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	// 1. Session storage
	store := session.NewMemoryStore()
	a.Navigator = session.NewLocationNavigator(cfg.API.HomePath, func(_ context.Context, location string, reload bool) error {
		log.Info("Navigating", "location", location, "reload", reload)
		return nil
	})
	store.Navigator = a.Navigator
	store.Notifier = session.NewLogNotifier(log)

	var checks []admin.Option
	if cfg.Session.Storage == config.StorageRedis {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = rc
		store.Persistent = redisclient.NewKeyStore(rc, "persistent")
		checks = append(checks, admin.WithCheck("redis", rc.Health))
		log.Info("Using Redis session storage")
	} else {
		log.Info("Using Memory session storage")
	}

	var databases []session.DatabaseStore
	var tdOpts []session.Option
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			a.close()
			return nil, err
		}
		caches := postgres.NewCacheDatabases(db)
		if err := caches.Ensure(ctx, cfg.Session.Databases...); err != nil {
			a.close()
			return nil, err
		}
		databases = append(databases, caches)

		audit := postgres.NewAuditRepo(db)
		tdOpts = append(tdOpts, session.WithAuditor(audit))
		checks = append(checks, admin.WithCheck("database", db.Health), admin.WithHistory(audit))
		log.Info("Using PostgreSQL cache databases")
	}
	if cfg.Session.CacheDir != "" {
		databases = append(databases, file.NewDatabases(cfg.Session.CacheDir, 0))
		log.Info("Using on-disk cache databases", "dir", cfg.Session.CacheDir)
	}
	if len(databases) > 0 {
		store.Databases = session.Databases(databases...)
	} else {
		store.Databases = session.NewMemoryDatabases(cfg.Session.Databases...)
	}
	a.Store = store

	// 2. Transport, teardown and error funnel
	a.Tokens = session.NewTokenStore(store.Persistent, cfg.Session.TokenKey)
	exec := transport.NewExecutor(transport.Config{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Jar:       store.Cookies,
		Tokens:    a.Tokens,
	})

	tdOpts = append(tdOpts, session.WithLogger(log))
	a.Teardown = session.NewTeardown(cfg.TeardownConfig(), store, exec, tdOpts...)

	counters := errs.NewCounters(cfg.Errors.Threshold, cfg.Errors.Window)
	a.Normalizer = errs.NewNormalizer(counters, a.Teardown,
		errs.WithLogger(log),
		errs.WithUserResolver(a.Tokens),
	)

	a.Client = client.New(exec, a.Normalizer,
		client.WithPolicy(cfg.RetryPolicy()),
		client.WithLogger(log),
	)

	// 3. Admin surface
	adminOpts := append([]admin.Option{admin.WithSessions(a.Teardown)}, checks...)
	a.admin = admin.NewServer(counters, cfg.Server.Port, adminOpts...)

	return a, nil
}

// Admin returns the admin server.
func (a *App) Admin() *admin.Server { return a.admin }

// Start starts the admin server and background collectors.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.admin.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Admin server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	a.log.Info("Admin server listening", "port", a.cfg.Server.Port)
	return nil
}

// Stop stops the admin server and closes connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping apiguard...")
	err := a.admin.Stop(ctx)
	a.close()
	return err
}

func (a *App) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
