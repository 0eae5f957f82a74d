package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

type memoryFile struct {
	data    []byte
	modTime time.Time
}

// MemoryStore keeps images in memory. Suitable for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memoryFile
}

func NewMemory() *MemoryStore {
	return &MemoryStore{files: make(map[string]memoryFile)}
}

func (s *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	if _, err := CleanName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = memoryFile{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

func (s *MemoryStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[name]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	return nopCloser{bytes.NewReader(f.data)}, f.modTime, nil
}

func (s *MemoryStore) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[name]; !ok {
		return ErrNotFound
	}
	delete(s.files, name)
	return nil
}

// Len reports how many files are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
