package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/personaforge-backend/internal/config"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
	"github.com/yungbote/personaforge-backend/internal/platform/objectstore"
)

var (
	newLocalStore = func(log *logger.Logger, root, publicBaseURL string) (objectstore.Store, error) {
		return objectstore.NewLocalStore(log, root, publicBaseURL)
	}
	newGCSStore = func(ctx context.Context, log *logger.Logger, cfg objectstore.GCSConfig) (objectstore.Store, error) {
		return objectstore.NewGCSStore(ctx, log, cfg)
	}
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode      StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket    StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingBackupDir StorageProviderBootstrapErrorCode = "missing_backup_dir"
	StorageProviderBootstrapErrorConnectFailed    StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectStore returns the store for backups and avatars. A nil store
// with a nil error means backups are disabled and no media store is needed.
func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg config.StorageConfig) (objectstore.Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	emulator := strings.TrimSpace(cfg.GCSEmulatorHost)

	fail := func(code StorageProviderBootstrapErrorCode, cause error) error {
		err := &StorageProviderBootstrapError{Code: code, Mode: mode, EmulatorHost: emulator, Cause: cause}
		log.Error(
			"Object storage provider bootstrap failed",
			"mode", mode,
			"emulator_host", emulator,
			"error_code", err.Code,
			"error", err,
		)
		return err
	}

	log.Info("Selecting object storage provider", "mode", mode, "emulator_host", emulator, "backups", cfg.BackupsEnabled)

	switch mode {
	case config.StorageLocal:
		if strings.TrimSpace(cfg.BackupDir) == "" {
			return nil, fail(StorageProviderBootstrapErrorMissingBackupDir, errors.New("missing env var BACKUP_DIR"))
		}
		store, err := newLocalStore(log, cfg.BackupDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, fail(StorageProviderBootstrapErrorConnectFailed, err)
		}
		return store, nil
	case config.StorageGCS:
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fail(StorageProviderBootstrapErrorMissingBucket, errors.New("missing env var GCS_BUCKET"))
		}
		store, err := newGCSStore(ctx, log, objectstore.GCSConfig{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			PublicBaseURL:   cfg.PublicBaseURL,
			EmulatorHost:    emulator,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, fail(StorageProviderBootstrapErrorConnectFailed, err)
		}
		return store, nil
	default:
		return nil, fail(StorageProviderBootstrapErrorInvalidMode, fmt.Errorf("unsupported object storage mode %q", cfg.Mode))
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
