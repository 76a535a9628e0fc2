package app

import (
	"context"
	"strings"

	"github.com/yungbote/personaforge-backend/internal/config"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

var newRedisProgressStore = func(ctx context.Context, log *logger.Logger, cfg progress.RedisConfig) (progress.Store, error) {
	return progress.NewRedisStore(ctx, log, cfg)
}

// resolveProgressStore uses Redis when REDIS_ADDR is set. An unreachable
// Redis degrades to the in-process store; progress is advisory and never
// blocks a cascade.
func resolveProgressStore(ctx context.Context, log *logger.Logger, cfg config.RedisConfig) progress.Store {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		log.Info("Using in-memory progress store", "ttl", cfg.TTL)
		return progress.NewMemoryStoreWithTTL(cfg.TTL)
	}
	store, err := newRedisProgressStore(ctx, log, progress.RedisConfig{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		log.Warn("Redis progress store unavailable, falling back to memory", "addr", addr, "error", err)
		return progress.NewMemoryStoreWithTTL(cfg.TTL)
	}
	log.Info("Using redis progress store", "addr", addr)
	return store
}
