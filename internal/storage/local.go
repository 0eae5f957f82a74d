package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type localStore struct {
	dir string
}

// NewLocal stores images as files under dir, creating it if needed.
func NewLocal(dir string) (ImageStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) path(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *localStore) Save(ctx context.Context, name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func (s *localStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("failed to open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, fmt.Errorf("failed to stat image: %w", err)
	}
	return f, info.ModTime(), nil
}

func (s *localStore) Remove(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
