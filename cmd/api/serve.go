package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"casedesk/api/internal/app"
	"casedesk/api/internal/authpw"
	"casedesk/api/internal/casehistory"
	"casedesk/api/internal/dashcache"
	"casedesk/api/internal/email"
	"casedesk/api/internal/export"
	"casedesk/api/internal/media"
	"casedesk/api/internal/reminder"
	"casedesk/api/internal/search"
	"casedesk/api/internal/session"
	"casedesk/api/internal/store"
)

// runtime holds the wired dependencies shared by the subcommands.
type runtime struct {
	db      *sql.DB
	store   *store.PostgresStore
	search  *search.Service
	mailer  *email.Service
	objects *media.MinioStore
	service *app.Service
	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// buildRuntime connects every backend. Redis, Meilisearch and MinIO are
// optional: a failure is logged and the matching feature degrades.
func buildRuntime(ctx context.Context) (*runtime, error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	rt := &runtime{db: db, store: store.NewPostgresStore(db)}
	rt.closers = append(rt.closers, func() { _ = db.Close() })

	var sessions session.Store = session.NewPostgresStore(rt.store)
	var dashboard *dashcache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using postgres for sessions", zap.Error(err))
		} else {
			logger.Info("using redis for sessions and dashboard cache")
			sessions = redisStore
			dashboard = dashcache.New(redisStore.Client(), cfg.DashboardCacheTTL, logger.Named("dashboard"))
			rt.closers = append(rt.closers, func() { _ = redisStore.Close() })
		}
	}

	pgfts := search.NewPgFTS(db)
	var index search.Indexer
	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger.Named("meili"))
		index = meili
	}
	rt.search = search.NewService(index, pgfts, pgfts, logger)
	rt.closers = append(rt.closers, rt.search.Wait)
	if meili != nil {
		// Closers run in reverse, so the health loop stops before pending
		// index writes are drained.
		rt.closers = append(rt.closers, meili.Close)
	}

	rt.mailer = email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	deps := app.Dependencies{
		Store:     rt.store,
		Sessions:  sessions,
		Auth:      authpw.NewService(rt.store, cfg.TwoFactorIssuer, logger.Named("auth")),
		Mailer:    rt.mailer,
		Search:    rt.search,
		History:   casehistory.New(cfg.HistoryDir),
		Exporter:  export.NewService(rt.store),
		Dashboard: dashboard,
		Logger:    logger,
	}

	objects, err := media.NewMinioStore(media.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Warn("object storage disabled", zap.Error(err))
	} else {
		rt.objects = objects
		deps.Objects = objects
	}

	rt.service = app.New(cfg, deps)
	return rt, nil
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := store.ApplyMigrations(ctx, rt.db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := rt.service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap failed, will retry on next restart", zap.Error(err))
	}
	if rt.objects != nil {
		if err := rt.objects.EnsureBucket(ctx); err != nil {
			logger.Warn("ensure media bucket", zap.String("bucket", rt.objects.Bucket()), zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(rt.service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	jobs := reminder.New(rt.store, rt.mailer, reminder.Config{
		Interval: cfg.ReminderInterval,
		Window:   cfg.ReminderWindow,
		AppURL:   cfg.AppURL,
	}, logger.Named("reminder"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("casedesk api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		jobs.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		return nil
	})
	err = g.Wait()
	logger.Info("casedesk api stopped")
	return err
}
