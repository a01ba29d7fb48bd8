package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
)

// MinIOStore reads media objects from a bucket. Object keys are the media
// paths of the owning application.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinIOStore{client: client, bucket: cfg.Bucket}
	if err := s.Ping(ctx); err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	return s, nil
}

// ReadFile retrieves an object by key.
func (s *MinIOStore) ReadFile(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap(key, err)
	}
	return data, nil
}

// Localize downloads the object into a temp file that release removes.
func (s *MinIOStore) Localize(ctx context.Context, key string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "facerec-*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	release := func() { _ = os.Remove(name) }

	if err := s.client.FGetObject(ctx, s.bucket, key, name, minio.GetObjectOptions{}); err != nil {
		release()
		return "", nil, s.wrap(key, err)
	}
	return name, release, nil
}

// Ping checks MinIO connectivity and that the bucket exists.
func (s *MinIOStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *MinIOStore) wrap(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", key, ErrMediaNotFound)
	}
	return fmt.Errorf("get object %s: %w: %w", key, models.ErrDecode, err)
}
