package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

type Object struct {
	Key string
	URL string
}

// Store persists generated artefacts (avatar images, JSON batch backups).
type Store interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// CleanKey normalises a key into a relative slash path and rejects traversal.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("object key required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("object key escapes store root")
	}
	return cleaned, nil
}
