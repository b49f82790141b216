// Package app wires the configured store, registry and HTTP router together
// and runs the server until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturl/internal/adapter/cache"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shorturl/internal/config"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/internal/usecase"
	"github.com/vadimbarashkov/shorturl/internal/validation"
	"github.com/vadimbarashkov/shorturl/migrations"
	"golang.org/x/sync/errgroup"

	deliveryhttp "github.com/vadimbarashkov/shorturl/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/shorturl/pkg/postgres"
)

const shutdownTimeout = 10 * time.Second

type urlRepository interface {
	FindByURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
	Count(ctx context.Context) (int64, error)
	NextShortCode(ctx context.Context) (int64, error)
	Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
}

// NewLogger builds the service logger from the log section of cfg.
func NewLogger(cfg *config.Config) (*httplog.Logger, error) {
	const op = "app.NewLogger"

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("%s: invalid log level: %w", op, err)
	}

	return httplog.NewLogger("shorturl", httplog.Options{
		JSON:     cfg.Log.JSON,
		LogLevel: level,
		Concise:  !cfg.Log.JSON,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	}), nil
}

// Run opens the store and serves HTTP until ctx is done. The server does not
// start listening unless the store connection succeeded.
func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	urlRepo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStore()

	validator := validation.New(nil, validation.WithLookupTimeout(cfg.Validation.LookupTimeout))

	urlUseCase, err := usecase.New(validator, urlRepo, cfg.ShortCodeStrategy)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	router := deliveryhttp.NewRouter(logger, urlUseCase, deliveryhttp.StaticPaths{
		ViewsDir:  cfg.Static.ViewsDir,
		PublicDir: cfg.Static.PublicDir,
		DocsFile:  cfg.Static.DocsFile,
	})

	server := newServer(ctx, cfg.HTTPServer, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		logger.Info("server stopped")

		return nil
	})

	return g.Wait()
}

// newServer builds the HTTP server. Request contexts keep the values of ctx
// but are not cancelled with it, so Shutdown can drain in-flight requests.
func newServer(ctx context.Context, cfg config.HTTPServer, handler http.Handler) *http.Server {
	baseCtx := context.WithoutCancel(ctx)

	return &http.Server{
		Addr:           cfg.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return baseCtx
		},
	}
}

// openStore returns the configured URL store, wrapped in the Redis cache when
// one is configured, and a func releasing its connections.
func openStore(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (urlRepository, func(), error) {
	var (
		urlRepo urlRepository
		closers []func() error
	)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close connection", slog.Any("err", err))
			}
		}
	}

	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, urls are lost on restart")
		urlRepo = memory.NewURLRepository()
	default:
		pgRepo, db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		urlRepo = pgRepo

		logger.Info("connected to postgres")
	}

	if cfg.Redis.Enabled() {
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, client.Close)
		urlRepo = cache.NewURLRepository(urlRepo, client, cfg.Redis.CacheTTL, logger.Logger)

		logger.Info("connected to redis", slog.Duration("cache_ttl", cfg.Redis.CacheTTL))
	}

	return urlRepo, closeAll, nil
}

type closer interface {
	Close() error
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.URLRepository, closer, error) {
	const op = "app.openPostgres"

	dsn := cfg.Postgres.DSN()

	db, err := pgpkg.New(
		ctx,
		dsn,
		pgpkg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	if err := pgpkg.RunMigrations(migrations.FS, dsn); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	repo := postgres.NewURLRepository(db)

	if cfg.ShortCodeStrategy == usecase.StrategySequence {
		if err := repo.SyncShortCodeSequence(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return repo, db, nil
}

func openRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	const op = "app.openRedis"

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid redis url: %w", op, err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
