package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/docsearchd/internal/catalog"
)

// LocalObjectStore serves file bytes from a directory keyed by the file's
// StorageKey. Deployments backed by a remote object store supply their own
// ObjectStore instead.
type LocalObjectStore struct {
	baseDir string
}

// NewLocalObjectStore creates a store rooted at baseDir.
func NewLocalObjectStore(baseDir string) *LocalObjectStore {
	return &LocalObjectStore{baseDir: baseDir}
}

// Fetch reads the file's bytes. The storage key is confined to the base
// directory; traversal segments are stripped.
func (s *LocalObjectStore) Fetch(_ context.Context, file *catalog.File) ([]byte, error) {
	key := file.StorageKey
	if key == "" {
		key = file.ID
	}

	path := filepath.Join(s.baseDir, filepath.Clean("/"+key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

// Ensure LocalObjectStore implements ObjectStore.
var _ ObjectStore = (*LocalObjectStore)(nil)
