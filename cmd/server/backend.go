package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrkeshav-05/learning-backend/auth"
	"github.com/mrkeshav-05/learning-backend/cache/bolt"
	"github.com/mrkeshav-05/learning-backend/cache/memory"
	"github.com/mrkeshav-05/learning-backend/cache/redis"
	"github.com/mrkeshav-05/learning-backend/db/sql/postgres"
	"github.com/mrkeshav-05/learning-backend/internal/config"
)

// backend is an opened directory plus whatever must run or close alongside it.
type backend struct {
	directory auth.Directory
	// background, when set, runs for the server's lifetime.
	background func(ctx context.Context) error
	close      func() error
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	storeOpts := auth.StoreDirectoryOptions{RefreshTTL: cfg.RefreshTokenExpiry}

	switch cfg.DirectoryBackend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx,
			postgres.WithDSN(cfg.DatabaseURL),
			postgres.WithMaxOpenConns(cfg.DBMaxOpenConns),
		)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		logger.Info("directory ready", slog.String("backend", cfg.DirectoryBackend))
		return &backend{directory: postgres.NewDirectory(db), close: db.Close}, nil

	case config.BackendRedis:
		storeOpts.Prefix = cfg.RedisKeyPrefix
		directory, store := auth.NewRedisDirectory(auth.RedisDirectoryOptions{
			StoreDirectoryOptions: storeOpts,
			Redis: redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			},
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Info("directory ready",
			slog.String("backend", cfg.DirectoryBackend),
			slog.String("addr", cfg.RedisAddr),
		)
		return &backend{directory: directory, close: store.Close}, nil

	case config.BackendBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("opening bolt: %w", err)
		}
		logger.Info("directory ready",
			slog.String("backend", cfg.DirectoryBackend),
			slog.String("path", cfg.BoltPath),
		)
		return &backend{directory: auth.NewStoreDirectory(store, storeOpts), close: store.Close}, nil

	default:
		store := memory.NewStore()
		logger.Warn("using in-memory directory; identities are lost on restart")
		return &backend{
			directory: auth.NewStoreDirectory(store, storeOpts),
			background: func(ctx context.Context) error {
				return store.RunJanitor(ctx, time.Minute)
			},
			close: func() error { return nil },
		}, nil
	}
}
