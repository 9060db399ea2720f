package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// CreateUserInput carries an administrative user creation. ID must be the
// identifier of an existing provider identity.
type CreateUserInput struct {
	ID              uuid.UUID
	Email           string
	Name            string
	ProfileImageURL string
}

// ListUsersResult is returned by List.
type ListUsersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// MarkForDeletionResult reports the outcome of a mark request.
type MarkForDeletionResult struct {
	UserID            uuid.UUID
	Changed           bool
	MarkedForDeletion bool
}

// UserService exposes the user registry to transport handlers.
type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByAnonymousID(ctx context.Context, anonymousID string) (*domain.User, error)
	List(ctx context.Context, filter ListUsersFilter) (*ListUsersResult, error)
	Create(ctx context.Context, input CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkForDeletion(ctx context.Context, actor *domain.User, targetID uuid.UUID) (*MarkForDeletionResult, error)
	ListMarkedForDeletion(ctx context.Context) ([]*domain.User, error)
}
