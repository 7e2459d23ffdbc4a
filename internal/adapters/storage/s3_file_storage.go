package storage_adapter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/minio/minio-go/v7"
)

// S3FileStorage исходные CSV в бакете MinIO/S3
type S3FileStorage struct {
	client *minio.Client
	bucket string
}

var _ port.FileStoragePort = (*S3FileStorage)(nil)

func NewS3FileStorage(client *minio.Client, bucket string) (*S3FileStorage, error) {
	if client == nil {
		return nil, errors.New("s3 client not initialized")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket cannot be empty")
	}
	return &S3FileStorage{client: client, bucket: bucket}, nil
}

func (s *S3FileStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "text/csv"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *S3FileStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject ленивый: отсутствие объекта видно только после Stat
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("s3 stat object: %w", err)
	}
	return obj, nil
}

func (s *S3FileStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove object: %w", err)
	}
	return nil
}
