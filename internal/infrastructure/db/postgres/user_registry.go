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

var userColumns = []string{
	"id", "email", "name", "profile_image_url", "is_anonymous", "anonymous_id",
	"converted_from_anonymous_id", "marked_for_deletion", "created_at", "updated_at", "deleted_at",
}

var userColumnList = strings.Join(userColumns, ", ")

// UserRegistry implements ports.UserRegistry on PostgreSQL.
type UserRegistry struct {
	db   DB
	pool Pool // nil when bound to a transaction
}

// NewUserRegistry returns a registry running each statement on pool.
func NewUserRegistry(pool Pool) *UserRegistry {
	return &UserRegistry{db: pool, pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.ProfileImageURL, &u.IsAnonymous, &u.AnonymousID,
		&u.ConvertedFromAnonymousID, &u.MarkedForDeletion, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRegistry) findOne(ctx context.Context, notFound error, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumnList + ` FROM users WHERE ` + where + ` AND deleted_at IS NULL`
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *UserRegistry) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, domain.ErrUserNotFound, "id = $1", id)
}

func (r *UserRegistry) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, domain.ErrUserNotFound, "email = $1", email)
}

func (r *UserRegistry) FindByAnonymousID(ctx context.Context, anonymousID string) (*domain.User, error) {
	return r.findOne(ctx, domain.ErrAnonymousUserNotFound, "anonymous_id = $1", anonymousID)
}

func (r *UserRegistry) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	where := sq.And{sq.Eq{"deleted_at": nil}}
	if f.Email != "" {
		where = append(where, sq.Eq{"email": f.Email})
	}
	if f.IsAnonymous != nil {
		where = append(where, sq.Eq{"is_anonymous": *f.IsAnonymous})
	}
	if f.MarkedForDeletion != nil {
		where = append(where, sq.Eq{"marked_for_deletion": *f.MarkedForDeletion})
	}

	countSQL, countArgs, err := sq.Select("COUNT(*)").From("users").Where(where).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	listSQL, listArgs, err := sq.Select(userColumns...).From("users").Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(f.Limit)).
		Offset(pageOffset(f.Page, f.Limit)).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	users, err := r.queryUsers(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRegistry) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *UserRegistry) RolesOf(ctx context.Context, userID uuid.UUID) ([]domain.RoleName, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []domain.RoleName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, domain.RoleName(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

func (r *UserRegistry) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, profile_image_url, is_anonymous, anonymous_id,
		                    converted_from_anonymous_id, marked_for_deletion, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.Name, u.ProfileImageURL, u.IsAnonymous, u.AnonymousID,
		u.ConvertedFromAnonymousID, u.MarkedForDeletion, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapUserWriteError(err)
	}
	return nil
}

func (r *UserRegistry) AssignRole(ctx context.Context, userID uuid.UUID, role domain.RoleName) error {
	var roleID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, string(role)).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrRoleNotFound, role)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRegistry) ConvertAnonymous(ctx context.Context, id uuid.UUID, email string, name *string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET email = $2,
		     name = COALESCE($3, name),
		     is_anonymous = false,
		     converted_from_anonymous_id = anonymous_id,
		     anonymous_id = NULL,
		     updated_at = now()
		 WHERE id = $1 AND is_anonymous AND deleted_at IS NULL
		 RETURNING `+userColumnList, id, email, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAnonymousUserNotFound
	}
	if err != nil {
		return nil, mapUserWriteError(err)
	}
	return u, nil
}

func (r *UserRegistry) Update(ctx context.Context, id uuid.UUID, upd ports.UserUpdate) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name),
		     profile_image_url = COALESCE($3, profile_image_url),
		     marked_for_deletion = COALESCE($4, marked_for_deletion),
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+userColumnList, id, upd.Name, upd.ProfileImageURL, upd.MarkedForDeletion))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *UserRegistry) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRegistry) MarkForDeletion(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET marked_for_deletion = true, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL AND NOT marked_for_deletion`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRegistry) ListMarkedForDeletion(ctx context.Context) ([]*domain.User, error) {
	return r.queryUsers(ctx,
		`SELECT `+userColumnList+` FROM users
		 WHERE marked_for_deletion AND deleted_at IS NULL
		 ORDER BY updated_at`)
}

// WithinTx runs fn in a transaction. Calls made on an already transactional
// registry join the current transaction.
func (r *UserRegistry) WithinTx(ctx context.Context, fn func(tx ports.UserRegistry) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&UserRegistry{db: tx})
	})
}

func mapUserWriteError(err error) error {
	constraint, ok := uniqueViolationOn(err)
	if !ok {
		return fmt.Errorf("db error: %w", err)
	}
	switch constraint {
	case "users_email_key":
		return domain.ErrEmailTaken
	default:
		return domain.ErrUserExists
	}
}
