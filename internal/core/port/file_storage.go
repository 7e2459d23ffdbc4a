package port

import (
	"context"
	"io"
)

// FileStoragePort хранилище исходных CSV, общее для api и воркера
type FileStoragePort interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
