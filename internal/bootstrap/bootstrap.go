// Package bootstrap wires configuration into the running services shared by
// the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"loan-manager/internal/ai"
	"loan-manager/internal/app"
	"loan-manager/internal/config"
	"loan-manager/internal/core"
	"loan-manager/internal/db"
	"loan-manager/internal/events"
	"loan-manager/internal/export"
	"loan-manager/internal/observability"
	"loan-manager/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Runtime holds the wired services and everything that must be closed on exit.
type Runtime struct {
	Service  app.ApplicationService
	Metrics  *observability.Metrics
	Pool     *pgxpool.Pool
	Exports  *export.Service
	FilesDir string // set when documents are stored on local disk

	closers []func() error
}

// Build connects to the database and the optional integrations named in cfg.
func Build(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*Runtime, error) {
	if cfg.MigrationsAuto {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Pool: pool, Metrics: observability.NewMetrics()}
	rt.closers = append(rt.closers, func() error { pool.Close(); return nil })

	files, err := rt.fileStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var publisher core.EventPublisher = core.NopPublisher{}
	if cfg.Kafka.Enabled() {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		rt.closers = append(rt.closers, kp.Close)
		publisher = kp
		logger.Info("publishing loan events to kafka", "topic", cfg.Kafka.Topic)
	}

	store := core.NewPgStore(pool)
	loans := core.NewLoanService(store,
		core.WithEventPublisher(rt.Metrics.Publisher(publisher)),
		core.WithFileStore(files),
		core.WithLogger(logger),
	)

	if cfg.Redis.Enabled() {
		rdb, err := export.NewRedisClient(export.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			DialTimeout: cfg.Redis.DialTimeout,
			Timeout:     cfg.Redis.Timeout,
			Prefix:      cfg.Redis.Prefix,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { rdb.Close(); return nil })
		rt.Exports = export.NewService(loans, files, rdb, logger)
	} else {
		logger.Warn("REDIS_ADDR is not set, schedule exports are disabled")
	}

	var agent ai.IntakeAgent
	if cfg.OpenAIAPIKey != "" {
		agent = ai.NewAgent(cfg.OpenAIAPIKey)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, loan intake is disabled")
	}

	rt.Service = app.NewAppService(store, loans, core.NewUserService(pool), rt.Exports, agent)
	return rt, nil
}

func (rt *Runtime) fileStore(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (core.FileStore, error) {
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("documents stored in object storage", "bucket", cfg.S3.Bucket)
		return s3, nil
	}
	local, err := storage.NewLocalStore(cfg.StorageDir, "/files")
	if err != nil {
		return nil, err
	}
	rt.FilesDir = local.BaseDir
	logger.Info("documents stored on local disk", "dir", local.BaseDir)
	return local, nil
}

// Close waits for running exports and releases connections in reverse order.
func (rt *Runtime) Close() error {
	if rt.Exports != nil {
		rt.Exports.Wait()
	}
	var firstErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close resource: %w", err)
		}
	}
	rt.closers = nil
	return firstErr
}
