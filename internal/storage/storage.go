package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// URLPrefix is the public path stored images are served under.
const URLPrefix = "/api/medical-images/file/"

// ImageStore persists uploaded images by flat file name.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error)
	Remove(ctx context.Context, name string) error
}

// URL is the public location of a stored file.
func URL(name string) string {
	return URLPrefix + name
}

// NameFromURL recovers the file name from a URL built by URL.
func NameFromURL(url string) (string, error) {
	return CleanName(path.Base(url))
}

// CleanName accepts only plain base names.
func CleanName(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return name, nil
}

// RemoveURLs deletes the files behind urls, logging failures. Used after a
// transaction has committed, when a leftover file is no reason to fail.
func RemoveURLs(ctx context.Context, s ImageStore, urls ...string) {
	for _, url := range urls {
		name, err := NameFromURL(url)
		if err == nil {
			err = s.Remove(ctx, name)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("url", url).Msg("Failed to remove stored image")
		}
	}
}
