// Package storage persists donation proof photos. The workflow keeps only an
// opaque reference; where the bytes actually live is this package's concern.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PhotoStore saves and serves donation proof photos by opaque reference.
type PhotoStore interface {
	// Save stores the photo and returns its reference.
	Save(ctx context.Context, r io.Reader, contentType string) (string, error)
	// Open returns the photo bytes for a previously returned reference.
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type diskStore struct {
	dir string
}

// NewDiskStore stores photos as files under dir, one file per reference.
func NewDiskStore(dir string) (PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

func (s *diskStore) Save(_ context.Context, r io.Reader, contentType string) (string, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported photo type %q", contentType)
	}

	ref := uuid.New().String() + ext
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return ref, nil
}

func (s *diskStore) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	// References are generated by Save; reject anything that escapes the dir.
	if ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return nil, "", fmt.Errorf("invalid photo reference %q", ref)
	}

	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}
