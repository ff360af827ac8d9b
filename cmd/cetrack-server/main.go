// Package main is the entry point for the CE Track API server.
// CE Track tracks continuing-education compliance across per-state
// license renewal cycles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/cache/memory"
	"github.com/prn-tf/cetrack/internal/cache/noop"
	rediscache "github.com/prn-tf/cetrack/internal/cache/redis"
	"github.com/prn-tf/cetrack/internal/config"
	"github.com/prn-tf/cetrack/internal/handler"
	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/repository"
	"github.com/prn-tf/cetrack/internal/repository/postgres"
	"github.com/prn-tf/cetrack/internal/repository/sqlite"
	"github.com/prn-tf/cetrack/internal/service"
	"github.com/prn-tf/cetrack/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting CE Track server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, health, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer health.Close()

	blobs, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	identityCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()

	userService := service.NewUserService(repos.Users, identityCache, cfg.Cache.IdentityTTL, logger)
	licenseService := service.NewLicenseService(repos.Licenses, repos.Cycles, logger)
	cycleService := service.NewCycleService(repos.Licenses, repos.Cycles, repos.Allocations, repos.Tx, logger)
	courseService := service.NewCourseService(repos.Courses, repos.Cycles, repos.Allocations, repos.Certificates, blobs, repos.Tx, logger)
	allocationService := service.NewAllocationService(repos.Courses, repos.Cycles, repos.Allocations, repos.Tx, logger)
	certificateService := service.NewCertificateService(repos.Courses, repos.Certificates, blobs, logger)
	progressService := service.NewProgressService(repos.Cycles, repos.Allocations, logger)
	timelineService := service.NewTimelineService(repos.Cycles, repos.Courses, repos.Allocations, repos.Certificates, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Users:        userService,
		Licenses:     licenseService,
		Cycles:       cycleService,
		Courses:      courseService,
		Allocations:  allocationService,
		Certificates: certificateService,
		Progress:     progressService,
		Timeline:     timelineService,
		DB:           health,
		Metrics:      m,
		Config:       cfg,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// migrator is implemented by both database drivers.
type migrator interface {
	Migrate(ctx context.Context) error
}

// openDatabase connects to the configured database and runs pending
// migrations.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
		if cfg.Database.JournalMode != "" {
			dbCfg.JournalMode = cfg.Database.JournalMode
		}
		if cfg.Database.BusyTimeout > 0 {
			dbCfg.BusyTimeout = cfg.Database.BusyTimeout
		}
		if cfg.Database.SynchronousMode != "" {
			dbCfg.SynchronousMode = cfg.Database.SynchronousMode
		}
		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := migrate(ctx, db, db, logger); err != nil {
			return nil, nil, err
		}
		return sqlite.NewRepositories(db), db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			DSN:             cfg.Database.DSN(),
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := migrate(ctx, db, db, logger); err != nil {
			return nil, nil, err
		}
		return postgres.NewRepositories(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}

func migrate(ctx context.Context, m migrator, health repository.DatabaseHealth, logger zerolog.Logger) error {
	if err := m.Migrate(ctx); err != nil {
		health.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info().Msg("database migrations applied")
	return nil
}

// openStorage builds the configured certificate blob backend.
func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "filesystem":
		return storage.NewFilesystemBackend(cfg.Storage.DataDir, logger)
	case "s3":
		return storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}
}

// openCache builds the configured identity cache.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return memory.NewCache(), nil
	case "redis":
		return rediscache.NewCache(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
	case "none":
		return noop.NewCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q", cfg.Cache.Backend)
	}
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
