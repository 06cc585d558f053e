// Package filestore persists the uploaded files.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/upload"
)

// DiskStore writes the files under a directory served at BaseURL.
type DiskStore struct {
	dir     string
	baseURL string
}

var _ upload.Store = (*DiskStore)(nil)

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *DiskStore) Dir() string {
	return s.dir
}

// Save stores `f` under a random name keeping the extension of its content type.
func (s *DiskStore) Save(ctx context.Context, f upload.File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.New().String() + f.Ext()
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed
	if _, err = tmp.Write(f.Bytes); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "moving file")
	}
	return s.baseURL + "/" + name, nil
}

func (s *DiskStore) Delete(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, s.baseURL+"/")
	if name == url || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// MemoryStore keeps the files in memory.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	files map[string]upload.File
}

var _ upload.Store = (*MemoryStore)(nil)

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimSuffix(baseURL, "/"), files: make(map[string]upload.File)}
}

func (s *MemoryStore) Save(_ context.Context, f upload.File) (string, error) {
	url := s.baseURL + "/" + uuid.New().String() + f.Ext()
	s.mu.Lock()
	s.files[url] = f
	s.mu.Unlock()
	return url, nil
}

func (s *MemoryStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	delete(s.files, url)
	s.mu.Unlock()
	return nil
}

// Get returns the file saved at `url`.
func (s *MemoryStore) Get(url string) (upload.File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[url]
	return f, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
