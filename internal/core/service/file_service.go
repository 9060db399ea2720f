package service

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// FileService stores blobs and their metadata. Non-privileged callers only
// see their own files; other files look absent to them.
type FileService struct {
	repo  ports.FileRepository
	blobs ports.BlobStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewFileService(repo ports.FileRepository, blobs ports.BlobStore, log zerolog.Logger) *FileService {
	return &FileService{
		repo:  repo,
		blobs: blobs,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *FileService) Upload(ctx context.Context, owner *domain.User, input ports.UploadFileInput) (*domain.File, error) {
	name := cleanFileName(input.Name)
	if name == "" {
		return nil, domain.ErrFileNameRequired
	}
	if !domain.FileTypeAllowed(input.ContentType) {
		return nil, domain.ErrFileTypeNotAllowed
	}
	if input.Size > domain.MaxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	id := uuid.New()
	key := fmt.Sprintf("files/%s/%s-%s", owner.ID, id, name)
	url, err := s.blobs.Put(ctx, key, input.Body, input.Size, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	now := s.now()
	ownerID := owner.ID
	f := &domain.File{
		ID:          id,
		Name:        name,
		DownloadURL: url,
		StorageKey:  key,
		ContentType: input.ContentType,
		SizeBytes:   input.Size,
		OwnerID:     &ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("failed to remove orphaned blob")
		}
		return nil, err
	}

	s.log.Info().
		Str("file_id", f.ID.String()).
		Str("user_id", owner.ID.String()).
		Int64("size_bytes", f.SizeBytes).
		Msg("file uploaded")
	return f, nil
}

func (s *FileService) Get(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) (*domain.File, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged(roles) && !f.OwnedBy(caller.ID) {
		return nil, domain.ErrFileNotFound
	}
	return f, nil
}

func (s *FileService) List(ctx context.Context, caller *domain.User, roles []domain.RoleName, page, limit int) (*ports.ListFilesResult, error) {
	page, limit = normalizePage(page, limit)
	filter := ports.ListFilesFilter{Page: page, Limit: limit}
	if !privileged(roles) {
		ownerID := caller.ID
		filter.OwnerID = &ownerID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ports.ListFilesResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (s *FileService) Rename(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID, name string) (*domain.File, error) {
	name = cleanFileName(name)
	if name == "" {
		return nil, domain.ErrFileNameRequired
	}
	if _, err := s.Get(ctx, caller, roles, id); err != nil {
		return nil, err
	}
	return s.repo.Rename(ctx, id, name)
}

// Delete removes the blob first, then soft-deletes the metadata row.
func (s *FileService) Delete(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) error {
	f, err := s.Get(ctx, caller, roles, id)
	if err != nil {
		return err
	}
	if f.StorageKey != "" {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("file_id", id.String()).Str("user_id", caller.ID.String()).Msg("file deleted")
	return nil
}

func privileged(roles []domain.RoleName) bool {
	return slices.Contains(roles, domain.RoleAdmin) || slices.Contains(roles, domain.RoleSuperadmin)
}

func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
