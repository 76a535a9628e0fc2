package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/config"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/modules/companies"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
	"github.com/yungbote/personaforge-backend/internal/platform/objectstore"
)

func testConfig(t *testing.T, extra map[string]string) config.Config {
	t.Helper()
	env := map[string]string{
		"DATABASE_DRIVER":         "sqlite",
		"DATABASE_URL":            fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
		"DATABASE_MAX_OPEN_CONNS": "1",
		"BACKUP_DIR":              t.TempDir(),
		"MEDIA_DIR":               t.TempDir(),
		"LOG_MODE":                "test",
	}
	for k, v := range extra {
		env[k] = v
	}
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestResolveObjectStoreLocal(t *testing.T) {
	store, err := resolveObjectStore(context.Background(), logger.Nop(), config.StorageConfig{
		Mode:      config.StorageLocal,
		BackupDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := store.(*objectstore.LocalStore); !ok {
		t.Fatalf("expected *objectstore.LocalStore, got=%T", store)
	}
}

func TestResolveObjectStoreErrorCodes(t *testing.T) {
	orig := newGCSStore
	t.Cleanup(func() { newGCSStore = orig })
	newGCSStore = func(context.Context, *logger.Logger, objectstore.GCSConfig) (objectstore.Store, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	cases := []struct {
		name string
		cfg  config.StorageConfig
		want StorageProviderBootstrapErrorCode
	}{
		{"invalid mode", config.StorageConfig{Mode: "s3"}, StorageProviderBootstrapErrorInvalidMode},
		{"missing backup dir", config.StorageConfig{Mode: config.StorageLocal}, StorageProviderBootstrapErrorMissingBackupDir},
		{"missing bucket", config.StorageConfig{Mode: config.StorageGCS}, StorageProviderBootstrapErrorMissingBucket},
		{"connect failed", config.StorageConfig{Mode: config.StorageGCS, GCSBucket: "personas", GCSEmulatorHost: "localhost:4443"}, StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveObjectStore(context.Background(), logger.Nop(), tc.cfg)
			var got *StorageProviderBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageProviderBootstrapError, got=%T (%v)", err, err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if code := storageProviderBootstrapErrorCode(err); code != tc.want {
				t.Fatalf("classified code: want=%q got=%q", tc.want, code)
			}
		})
	}
}

func TestStorageProviderBootstrapErrorCodeDefaultsToConnectFailed(t *testing.T) {
	if code := storageProviderBootstrapErrorCode(errors.New("boom")); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
}

func TestResolveProgressStore(t *testing.T) {
	if _, ok := resolveProgressStore(context.Background(), logger.Nop(), config.RedisConfig{}).(*progress.MemoryStore); !ok {
		t.Fatalf("expected memory store without REDIS_ADDR")
	}

	orig := newRedisProgressStore
	t.Cleanup(func() { newRedisProgressStore = orig })
	newRedisProgressStore = func(context.Context, *logger.Logger, progress.RedisConfig) (progress.Store, error) {
		return nil, errors.New("redis ping: connection refused")
	}
	store := resolveProgressStore(context.Background(), logger.Nop(), config.RedisConfig{Addr: "localhost:6379"})
	if _, ok := store.(*progress.MemoryStore); !ok {
		t.Fatalf("expected memory fallback when redis is unreachable, got=%T", store)
	}
}

func TestBootstrapWiresEveryStage(t *testing.T) {
	core, err := Bootstrap(context.Background(), testConfig(t, nil), logger.Nop(), Options{})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })

	for _, stage := range domain.StageOrder {
		if _, ok := core.Registry.Get(string(stage)); !ok {
			t.Fatalf("stage %s has no generator", stage)
		}
	}
	if core.Metrics == nil {
		t.Fatalf("metrics are enabled by default")
	}
}

func TestBootstrapForcesInlineExecutor(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"CASCADE_EXECUTOR":      config.ExecutorProcess,
		"CASCADE_GENERATOR_BIN": "/nonexistent/persona-generate",
	})
	core, err := Bootstrap(context.Background(), cfg, logger.Nop(), Options{ForceInline: true})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })

	ctx := context.Background()
	company, err := core.Companies.Create(ctx, companies.CreateInput{
		Code:          "ACME",
		Name:          "Acme",
		Industry:      "Logistics",
		Country:       "US",
		TotalPersonas: 4,
	})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	for _, stage := range []domain.StageID{domain.StagePersonas, domain.StageBiographies} {
		sum, err := core.Engine.Run(ctx, cascade.Request{CompanyID: company.ID, StageID: stage})
		if err != nil {
			t.Fatalf("run %s: %v", stage, err)
		}
		if !sum.Success || len(sum.Results) != 1 || !sum.Results[0].Success {
			t.Fatalf("run %s: expected success, got %+v", stage, sum)
		}
	}

	personas, err := core.Companies.Personas(ctx, "ACME")
	if err != nil {
		t.Fatalf("personas: %v", err)
	}
	if len(personas) != 4 {
		t.Fatalf("personas: want=4 got=%d", len(personas))
	}
}

func TestBootstrapFailsOnUnreachableDatabase(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"DATABASE_URL": "file:" + t.TempDir() + "/missing/dir/db.sqlite",
	})
	core, err := Bootstrap(context.Background(), cfg, logger.Nop(), Options{})
	if err == nil {
		_ = core.Close()
		t.Fatalf("expected bootstrap to fail")
	}
}
