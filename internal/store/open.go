package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"attendance-tracker/internal/config"
)

// Open builds the backend selected by cfg.StorageBackend.
func Open(ctx context.Context, cfg config.App, logger *zap.Logger) (KV, error) {
	switch cfg.StorageBackend {
	case "memory":
		return NewMemory(), nil
	case "", "file":
		return NewFile(cfg.DataDir, logger)
	case "redis":
		r := NewRedis(cfg.RedisAddr)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("redis not reachable at %s: %w", cfg.RedisAddr, err)
		}
		return r, nil
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, logger)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
