package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// UploadFileInput carries a file upload.
type UploadFileInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ListFilesResult is returned by List.
type ListFilesResult struct {
	Items      []*domain.File
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// FileService manages file metadata and blobs. Callers without the admin
// or superadmin role only see files they own.
type FileService interface {
	Upload(ctx context.Context, owner *domain.User, input UploadFileInput) (*domain.File, error)
	Get(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) (*domain.File, error)
	List(ctx context.Context, caller *domain.User, roles []domain.RoleName, page, limit int) (*ListFilesResult, error)
	Rename(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID, name string) (*domain.File, error)
	Delete(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) error
}
