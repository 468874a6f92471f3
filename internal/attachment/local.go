package attachment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes attachments below a directory that the HTTP server
// exposes under BaseURL.
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates basePath if needed.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return &LocalStore{basePath: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir returns the directory holding stored objects.
func (s *LocalStore) Dir() string {
	return s.basePath
}

// Put writes the object atomically via a temp file and rename.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + key))
	if clean == "/" || clean == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(s.basePath, clean)

	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return s.baseURL + "/" + url.PathEscape(clean), nil
}
