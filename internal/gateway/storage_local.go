package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes attachment payloads under a directory. Used for
// self-hosted setups without an object bucket, and by tests.
type LocalStore struct {
	Dir string

	// BaseURL, when set, is used by PublicURL instead of a file:// URL.
	BaseURL string
}

func (s LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("bad object key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}

func (s LocalStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return StorageError{Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return StorageError{Key: key, Err: err}
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return StorageError{Key: key, Err: err}
	}
	return nil
}

func (s LocalStore) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return StorageError{Key: key, Err: err}
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return StorageError{Key: key, Err: err}
	}
	return nil
}

func (s LocalStore) PublicURL(key string) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(key, "/")
	}
	return "file://" + filepath.ToSlash(filepath.Join(s.Dir, filepath.FromSlash(key)))
}
