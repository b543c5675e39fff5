package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// ObjectStore persists backup payloads keyed by backup id. In a full
// deployment this is remote durable object storage; the shipped
// implementation writes to a local directory.
type ObjectStore interface {
	Put(id string, data []byte) error
	Get(id string) ([]byte, error)
	Delete(id string) error
}

// DirStore stores payloads as files in a directory
type DirStore struct {
	dir string
}

// NewDirStore creates the backup directory if needed
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) path(id string) string {
	return filepath.Join(d.dir, id+".bak")
}

// Put writes a payload file
func (d *DirStore) Put(id string, data []byte) error {
	if err := os.WriteFile(d.path(id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup payload: %w", err)
	}
	return nil
}

// Get reads a payload file
func (d *DirStore) Get(id string) ([]byte, error) {
	data, err := os.ReadFile(d.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup payload: %w", err)
	}
	return data, nil
}

// Delete removes a payload file; missing files are not an error
func (d *DirStore) Delete(id string) error {
	if err := os.Remove(d.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup payload: %w", err)
	}
	return nil
}
