package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// ListFilesFilter carries the query parameters for listing files.
type ListFilesFilter struct {
	OwnerID *uuid.UUID // nil = every owner
	Page    int
	Limit   int
}

// FileRepository persists file metadata.
type FileRepository interface {
	Create(ctx context.Context, f *domain.File) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	List(ctx context.Context, filter ListFilesFilter) ([]*domain.File, int64, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*domain.File, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// BlobStore holds file contents. Put returns the locator stored as the
// file's download URL.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
