// Package store provides namespaced durable key-value slots backed by
// JSON files under the user config directory.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrQuotaExceeded reports that a write would exceed the store's byte
// quota, the file-backed analogue of storage-quota exhaustion.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// BlobStore is the durable key-value surface the persistence layer
// writes to. Each key is an independent namespaced slot.
type BlobStore interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) error
}

// FileStore keeps one file per slot under a base directory.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
	quota   int // max bytes per value; 0 means unlimited
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{baseDir: baseDir}, nil
}

// SetQuota caps the size of a single value. Used to exercise the
// storage-full degrade path.
func (s *FileStore) SetQuota(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = bytes
}

// Put writes a value, replacing any previous one.
func (s *FileStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 && len(data) > s.quota {
		return ErrQuotaExceeded
	}
	return os.WriteFile(s.path(key), data, 0644)
}

// Get reads a value; the second result is false when the slot is empty.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// DefaultDir returns the default config directory (~/.pixchat).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".pixchat"), nil
}
