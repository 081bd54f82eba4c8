// Package repository selects the durable key-value backend for favorites.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mrops-br/storefront-api/internal/domain"
	"github.com/mrops-br/storefront-api/internal/infrastructure/config"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/file"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/memory"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/redis"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/sqlite"
	"go.opentelemetry.io/otel/trace"
)

// SQLiteFile is the database file name created under StorageConfig.Path
const SQLiteFile = "storefront.db"

// Open returns the key-value store named by cfg.Driver
func Open(ctx context.Context, cfg *config.StorageConfig, tracer trace.Tracer, logger *slog.Logger) (domain.KeyValueStore, error) {
	logger = logger.With(slog.String("storage.driver", cfg.Driver))

	switch cfg.Driver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, favorites are lost on restart")
		return memory.NewKVStore(tracer, logger), nil

	case config.StorageFile:
		return file.NewKVStore(cfg.Path, tracer, logger)

	case config.StorageSQLite:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return sqlite.NewKVStore(ctx, filepath.Join(cfg.Path, SQLiteFile), tracer, logger)

	case config.StorageRedis:
		return redis.NewKVStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, tracer, logger)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
