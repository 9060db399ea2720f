package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// ListUsersFilter carries the query parameters for listing users.
// MaxPage bounds the 1-based page number accepted by paginated listings.
const MaxPage = 1_000_000

type ListUsersFilter struct {
	Email             string // optional: exact match
	IsAnonymous       *bool  // optional
	MarkedForDeletion *bool  // optional
	Page              int    // 1-based
	Limit             int    // max rows per page (capped at 100 by service)
}

// UserUpdate holds the mutable profile fields; nil means unchanged.
type UserUpdate struct {
	Name              *string
	ProfileImageURL   *string
	MarkedForDeletion *bool
}

// UserRegistry is the local user store. Soft-deleted rows are invisible to
// every lookup.
type UserRegistry interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByAnonymousID(ctx context.Context, anonymousID string) (*domain.User, error)
	// List returns a page of users matching filter and the total count.
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	RolesOf(ctx context.Context, userID uuid.UUID) ([]domain.RoleName, error)

	// Create inserts user. A duplicate id, email or anonymous id returns
	// domain.ErrConflict.
	Create(ctx context.Context, user *domain.User) error
	AssignRole(ctx context.Context, userID uuid.UUID, role domain.RoleName) error
	// ConvertAnonymous turns the anonymous row id into a verified one, moving
	// its anonymous id to converted_from_anonymous_id.
	ConvertAnonymous(ctx context.Context, id uuid.UUID, email string, name *string) (*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (*domain.User, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// MarkForDeletion flags the row and reports whether it changed. An absent
	// or already marked row yields false without error.
	MarkForDeletion(ctx context.Context, id uuid.UUID) (bool, error)
	ListMarkedForDeletion(ctx context.Context) ([]*domain.User, error)

	// WithinTx runs fn against a registry bound to a single transaction,
	// committing when fn returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx UserRegistry) error) error
}
