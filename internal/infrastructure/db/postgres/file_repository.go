package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

var fileColumns = []string{
	"id", "name", "download_url", "storage_key", "content_type", "size_bytes",
	"owner_id", "created_at", "updated_at", "deleted_at",
}

// FileRepository implements ports.FileRepository on PostgreSQL.
type FileRepository struct {
	db DB
}

func NewFileRepository(db DB) *FileRepository {
	return &FileRepository{db: db}
}

func scanFile(row pgx.Row) (*domain.File, error) {
	var f domain.File
	err := row.Scan(&f.ID, &f.Name, &f.DownloadURL, &f.StorageKey, &f.ContentType, &f.SizeBytes,
		&f.OwnerID, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FileRepository) Create(ctx context.Context, f *domain.File) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (id, name, download_url, storage_key, content_type, size_bytes, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.Name, f.DownloadURL, f.StorageKey, f.ContentType, f.SizeBytes, f.OwnerID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *FileRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	query, args, err := sq.Select(fileColumns...).From("files").
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	f, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *FileRepository) List(ctx context.Context, filter ports.ListFilesFilter) ([]*domain.File, int64, error) {
	where := sq.Eq{"deleted_at": nil}
	if filter.OwnerID != nil {
		where["owner_id"] = *filter.OwnerID
	}

	countSQL, countArgs, err := sq.Select("COUNT(*)").From("files").Where(where).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	listSQL, listArgs, err := sq.Select(fileColumns...).From("files").Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(pageOffset(filter.Page, filter.Limit)).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	files := make([]*domain.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return files, total, nil
}

func (r *FileRepository) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.File, error) {
	query, args, err := sq.Update("files").
		Set("name", name).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		Suffix("RETURNING " + strings.Join(fileColumns, ", ")).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	f, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *FileRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}
