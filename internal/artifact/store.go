package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"credit-underwriter/internal/errs"
)

// Store is the opaque get/put-by-key blob capability the pipeline persists
// through and the serving process loads from. Backends are interchangeable:
// a local directory, a bbolt database, or an HTTP registry.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// FileStore keeps blobs as files under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.dir, sanitizeKey(key))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	// Rename so readers never observe a partially written artifact.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish artifact %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sanitizeKey(key)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact %s: %w", key, errs.ErrArtifactUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, string(os.PathSeparator), "_")
}
