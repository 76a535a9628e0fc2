package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// LocalStore writes objects beneath a root directory.
type LocalStore struct {
	log           *logger.Logger
	root          string
	publicBaseURL string
}

func NewLocalStore(log *logger.Logger, root string, publicBaseURL string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local object store root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve object store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &LocalStore{
		log:           log.With("service", "LocalObjectStore"),
		root:          abs,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (s *LocalStore) path(key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, _ string, body io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cleaned, full, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp object: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("write object %s: %w", cleaned, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("close object %s: %w", cleaned, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("commit object %s: %w", cleaned, err)
	}
	s.log.Debug("Object stored", "key", cleaned)
	return Object{Key: cleaned, URL: s.PublicURL(cleaned)}, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// PublicURL is publicBaseURL/key when configured, otherwise a file:// URL.
func (s *LocalStore) PublicURL(key string) string {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ""
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + cleaned
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(cleaned)))}
	return u.String()
}
