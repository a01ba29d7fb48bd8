package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
)

// ErrMediaNotFound means the media path resolves to nothing. It is a decode
// error for the job.
var ErrMediaNotFound = fmt.Errorf("media not found: %w", models.ErrDecode)

// MediaStore resolves the relative media paths handed out by the owning
// application.
type MediaStore interface {
	// ReadFile returns the whole object. Used for photos.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Localize returns a local file path for decoders that need one. release
	// must be called when the file is no longer needed.
	Localize(ctx context.Context, path string) (local string, release func(), err error)
	Ping(ctx context.Context) error
}

// NewMediaStore builds the backend selected by cfg.Backend.
func NewMediaStore(ctx context.Context, cfg config.MediaConfig) (MediaStore, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalMediaStore(cfg.Root), nil
	case "minio":
		return NewMinIOStore(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// LocalMediaStore reads media from a directory on disk.
type LocalMediaStore struct {
	root string
}

func NewLocalMediaStore(root string) *LocalMediaStore {
	return &LocalMediaStore{root: root}
}

// resolve keeps the result inside root.
func (s *LocalMediaStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.Clean("/"+filepath.FromSlash(path)))
}

func (s *LocalMediaStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrMediaNotFound)
		}
		return nil, fmt.Errorf("read %s: %w: %w", path, models.ErrDecode, err)
	}
	return data, nil
}

func (s *LocalMediaStore) Localize(_ context.Context, path string) (string, func(), error) {
	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%s: %w", path, ErrMediaNotFound)
		}
		return "", nil, fmt.Errorf("stat %s: %w: %w", path, models.ErrDecode, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory: %w", path, models.ErrDecode)
	}
	return full, func() {}, nil
}

func (s *LocalMediaStore) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %s is not a directory", s.root)
	}
	return nil
}
