package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chathistory/internal/config"
	"chathistory/internal/kv"
	"chathistory/internal/retry"
)

// storage собранный бэкенд: обёрнутый для history.Store и исходный для
// обслуживания (sweep, close).
type storage struct {
	backend kv.Backend
	sweeper kv.Sweeper
	close   func() error
}

func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	var (
		raw kv.Backend
		st  = &storage{close: func() error { return nil }}
	)

	switch cfg.History.Backend {
	case config.BackendMemory:
		mem := kv.NewMemoryBackend()
		raw, st.sweeper = mem, mem
	case config.BackendSQLite:
		db, err := kv.NewSQLiteBackend(cfg.History.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		raw, st.sweeper, st.close = db, db, db.Close
	case config.BackendRedis:
		rdb := kv.NewRedisBackend(kv.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, err
		}
		raw, st.close = rdb, rdb.Close
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.History.Backend)
	}

	st.backend = kv.WithPrefix(
		kv.WithRetry(raw, retry.BackendPolicy(cfg.History.RetryAttempts), logger),
		cfg.History.KeyPrefix,
	)

	logger.Info("history backend ready",
		slog.String("backend", cfg.History.Backend),
		slog.String("prefix", cfg.History.KeyPrefix))
	return st, nil
}
