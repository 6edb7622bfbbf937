// Package server assembles the application from configuration and runs the
// HTTP server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/api"
	"github.com/JakeFAU/linkvault/internal/auth"
	"github.com/JakeFAU/linkvault/internal/bookmark"
	rediscache "github.com/JakeFAU/linkvault/internal/cache/redis"
	"github.com/JakeFAU/linkvault/internal/capture"
	"github.com/JakeFAU/linkvault/internal/clock/system"
	"github.com/JakeFAU/linkvault/internal/config"
	collyfetcher "github.com/JakeFAU/linkvault/internal/fetcher/colly"
	"github.com/JakeFAU/linkvault/internal/fetcher/headless"
	"github.com/JakeFAU/linkvault/internal/hash/sha256"
	"github.com/JakeFAU/linkvault/internal/id/uuid"
	"github.com/JakeFAU/linkvault/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/linkvault/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/linkvault/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/linkvault/internal/storage/gcs"
	localstorage "github.com/JakeFAU/linkvault/internal/storage/local"
	memorystorage "github.com/JakeFAU/linkvault/internal/storage/memory"
	pgstore "github.com/JakeFAU/linkvault/internal/storage/postgres"
	s3storage "github.com/JakeFAU/linkvault/internal/storage/s3"
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server

	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
	redisClient  *goredis.Client
	pgStore      *pgstore.BookmarkStore
	renderer     *headless.Renderer
}

// Handler exposes the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled, then shuts down within
// server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return closeErr
}

// Close releases every client the App opened.
func (a *App) Close(_ context.Context) error {
	if a.gcpPublisher != nil {
		a.gcpPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return nil
}

// Build creates the application's dependencies. On error, everything opened
// so far is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	if err := app.build(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("building application",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("database", cfg.Database.DSN != ""),
		zap.Bool("redis", cfg.Cache.Redis.Addr != ""),
		zap.String("events", cfg.Events.Backend),
		zap.Bool("auth", cfg.Auth.Enabled),
	)

	blobs, err := setupStorage(ctx, a)
	if err != nil {
		return err
	}
	repo, readiness, err := setupRepository(ctx, a)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}
	capturer, err := setupCapture(ctx, a, blobs)
	if err != nil {
		return err
	}

	clock := system.New()
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:      repo,
		Blobs:     blobs,
		Capturer:  capturer,
		Clock:     clock,
		Publisher: publisher,
		Topic:     cfg.Events.PubSub.Topic,
		Logger:    logger.Named("bookmarks"),
	})
	if err != nil {
		return fmt.Errorf("bookmark service init failed: %w", err)
	}

	gate, throttle, err := setupAuth(a)
	if err != nil {
		return err
	}

	a.apiServer, err = api.NewServer(api.Options{
		Bookmarks:      svc,
		Gate:           gate,
		Throttle:       throttle,
		Tagger:         sha256.New(),
		Readiness:      readiness,
		StaticDir:      cfg.Server.StaticDir,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger.Named("api"),
	})
	if err != nil {
		return fmt.Errorf("api server init failed: %w", err)
	}
	return nil
}

func setupStorage(ctx context.Context, app *App) (bookmark.BlobStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCS.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.GCS.Bucket))
		return blobs, nil
	case config.StorageS3:
		s3cfg := s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		}
		client, err := s3storage.NewClient(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client init failed: %w", err)
		}
		blobs, err := s3storage.New(client, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 blob store init failed: %w", err)
		}
		app.logger.Info("using S3 storage backend",
			zap.String("bucket", cfg.S3.Bucket),
			zap.String("endpoint", cfg.S3.Endpoint),
		)
		return blobs, nil
	case config.StorageLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		return blobs, nil
	default:
		app.logger.Warn("using in-memory storage backend; artifacts are lost on restart")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupRepository(ctx context.Context, app *App) (bookmark.Repository, map[string]api.Pinger, error) {
	cfg := app.cfg.Database
	if cfg.DSN == "" {
		app.logger.Warn("no database DSN configured, using in-memory repository")
		return memorystorage.NewBookmarkStore(), nil, nil
	}
	store, err := pgstore.NewBookmarkStore(ctx, pgstore.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		Migrate:         cfg.Migrate,
	}, app.logger.Named("postgres"))
	if err != nil {
		return nil, nil, fmt.Errorf("bookmark store init failed: %w", err)
	}
	app.pgStore = store
	return store, map[string]api.Pinger{"database": store}, nil
}

func setupPublisher(ctx context.Context, app *App) (bookmark.Publisher, error) {
	cfg := app.cfg.Events
	switch cfg.Backend {
	case config.EventsPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubClient = client
		app.gcpPublisher = gcppublisher.New(client)
		app.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.Topic),
		)
		return app.gcpPublisher, nil
	case config.EventsMemory:
		app.logger.Info("using in-memory event publisher")
		return memorypublisher.New(), nil
	default:
		return nil, nil
	}
}

func setupCapture(ctx context.Context, app *App, blobs bookmark.BlobStore) (*capture.Pipeline, error) {
	cfg := app.cfg.Capture
	deps := capture.Dependencies{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.UserAgent,
			RespectRobots: cfg.RespectRobots,
			Timeout:       cfg.Timeout,
			MaxBodyBytes:  cfg.MaxBodyBytes,
		}),
		Blobs:    blobs,
		IDs:      uuid.New(),
		Clock:    system.New(),
		CacheTTL: cfg.FaviconCacheTTL,
		Timeout:  cfg.Timeout,
		Logger:   app.logger.Named("capture"),
	}

	if cfg.Headless.Enabled {
		renderer, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: cfg.Headless.NavigationTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("headless renderer init failed: %w", err)
		}
		app.renderer = renderer
		deps.SnapshotFetcher = renderer
		// Rendering takes longer than a plain GET.
		deps.SnapshotTimeout = max(cfg.Timeout, cfg.Headless.NavigationTimeout)
		app.logger.Info("headless snapshots enabled", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	}

	if redisCfg := app.cfg.Cache.Redis; redisCfg.Addr != "" {
		client, err := rediscache.Connect(ctx, rediscache.ConnectOptions{
			Addr:           redisCfg.Addr,
			Password:       redisCfg.Password,
			DB:             redisCfg.DB,
			ConnectTimeout: redisCfg.ConnectTimeout,
		}, app.logger.Named("redis"))
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		app.redisClient = client
		deps.Cache = rediscache.NewFaviconCache(client)
	}

	pipeline, err := capture.New(deps)
	if err != nil {
		return nil, fmt.Errorf("capture pipeline init failed: %w", err)
	}
	return pipeline, nil
}

func setupAuth(app *App) (*auth.Gate, api.Throttle, error) {
	cfg := app.cfg.Auth
	if !cfg.Enabled {
		app.logger.Warn("authentication disabled")
		return nil, nil, nil
	}
	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("session init failed: %w", err)
	}
	gate := auth.NewGate(sessions, auth.NewPassword(cfg.Password, cfg.PasswordHash), auth.GateConfig{
		CookieName:  cfg.CookieName,
		Secure:      cfg.CookieSecure,
		PublicPaths: api.PublicPaths(),
	}, app.logger.Named("auth"))
	throttle := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.LoginRatePerMinute,
		Burst:     cfg.LoginBurst,
		IdleTTL:   time.Hour,
	})
	app.logger.Info("authentication enabled",
		zap.String("cookie", cfg.CookieName),
		zap.Int("login_rate_per_minute", cfg.LoginRatePerMinute),
	)
	return gate, throttle, nil
}
