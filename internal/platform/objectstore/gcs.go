package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type GCSConfig struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost    string
	CredentialsJSON string
	CredentialsFile string
}

// GCSStore writes objects into a single Cloud Storage bucket.
type GCSStore struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewGCSStore(ctx context.Context, log *logger.Logger, cfg GCSConfig) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("missing env var GCS_BUCKET")
	}
	client, err := storage.NewClient(ctx, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
		if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
			publicBase = host + "/storage/v1/b/" + bucket + "/o"
		}
	}
	serviceLog := log.With("service", "GCSObjectStore")
	serviceLog.Info("Object storage initialized", "bucket", bucket, "emulator_host", cfg.EmulatorHost, "public_base_url", publicBase)
	return &GCSStore{
		log:           serviceLog,
		client:        client,
		bucket:        bucket,
		prefix:        strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		publicBaseURL: publicBase,
	}, nil
}

func clientOptions(cfg GCSConfig) []option.ClientOption {
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		return []option.ClientOption{
			option.WithoutAuthentication(),
			option.WithEndpoint(host + "/storage/v1/"),
		}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		return append(opts, option.WithCredentialsFile(file))
	}
	return opts
}

func (s *GCSStore) objectName(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (Object, error) {
	name, err := s.objectName(key)
	if err != nil {
		return Object{}, err
	}
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("finalize %s: %w", name, err)
	}
	s.log.Debug("Object uploaded", "bucket", s.bucket, "object", name)
	return Object{Key: name, URL: s.PublicURL(key)}, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := s.objectName(key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return r, nil
}

func (s *GCSStore) PublicURL(key string) string {
	name, err := s.objectName(key)
	if err != nil {
		return ""
	}
	return s.publicBaseURL + "/" + name
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
