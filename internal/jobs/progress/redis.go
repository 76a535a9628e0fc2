package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

const defaultTTL = 24 * time.Hour

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore shares snapshots between API replicas and generator processes.
type RedisStore struct {
	rdb    *goredis.Client
	log    *logger.Logger
	prefix string
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, log *logger.Logger, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(log, rdb, cfg), nil
}

func newRedisStore(log *logger.Logger, rdb *goredis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "personaforge:progress"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		rdb:    rdb,
		log:    log.With("service", "RedisProgressStore"),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) runKey(id uuid.UUID) string     { return s.prefix + ":run:" + id.String() }
func (s *RedisStore) companyKey(id uuid.UUID) string { return s.prefix + ":company:" + id.String() }

func (s *RedisStore) Put(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	runKey := s.runKey(snap.RunID)
	created, err := s.rdb.SetNX(ctx, runKey, raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if created {
		return s.rdb.Set(ctx, s.companyKey(snap.CompanyID), snap.RunID.String(), s.ttl).Err()
	}
	return s.rdb.Set(ctx, runKey, raw, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, runID uuid.UUID) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) LatestForCompany(ctx context.Context, companyID uuid.UUID) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.companyKey(companyID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode run id: %w", err)
	}
	return s.Get(ctx, runID)
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
