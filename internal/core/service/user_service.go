package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UserService implements the user registry operations exposed over HTTP.
type UserService struct {
	registry ports.UserRegistry
	audit    ports.AuditLog
	log      zerolog.Logger
	now      func() time.Time
}

func NewUserService(registry ports.UserRegistry, audit ports.AuditLog, log zerolog.Logger) *UserService {
	return &UserService{
		registry: registry,
		audit:    audit,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.registry.FindByID(ctx, id)
}

// GetByAnonymousID resolves an anonymous user. Converted users are no longer
// reachable by their old anonymous id.
func (s *UserService) GetByAnonymousID(ctx context.Context, anonymousID string) (*domain.User, error) {
	if anonymousID == "" {
		return nil, domain.ErrAnonymousUserNotFound
	}
	user, err := s.registry.FindByAnonymousID(ctx, anonymousID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAnonymousUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !user.IsAnonymous {
		return nil, domain.ErrAnonymousUserNotFound
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, filter ports.ListUsersFilter) (*ports.ListUsersResult, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	items, total, err := s.registry.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ports.ListUsersResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

// Create registers a verified user for an existing provider identity.
func (s *UserService) Create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, domain.ErrIdentityWithoutEmail
	}
	if _, err := s.registry.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user := domain.NewVerifiedUser(input.ID, email, domain.StringPtr(strings.TrimSpace(input.Name)), s.now())
	user.ProfileImageURL = domain.StringPtr(input.ProfileImageURL)
	if err := createWithDefaultRole(ctx, s.registry, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID.String()).Msg("user created")
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, upd ports.UserUpdate) (*domain.User, error) {
	return s.registry.Update(ctx, id, upd)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.registry.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id.String()).Msg("user deleted")
	return nil
}

// MarkForDeletion flags targetID for the deletion batch. The actor may mark
// itself or any anonymous user. An absent or already marked target is not an
// error; the result then reports no change.
func (s *UserService) MarkForDeletion(ctx context.Context, actor *domain.User, targetID uuid.UUID) (*ports.MarkForDeletionResult, error) {
	if actor == nil {
		return nil, domain.ErrForbidden
	}
	out := &ports.MarkForDeletionResult{UserID: targetID}

	alreadyMarked := actor.MarkedForDeletion
	if actor.ID != targetID {
		target, err := s.registry.FindByID(ctx, targetID)
		if errors.Is(err, domain.ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if !target.IsAnonymous {
			return nil, domain.ErrCannotMarkOtherUser
		}
		alreadyMarked = target.MarkedForDeletion
	}

	changed, err := s.registry.MarkForDeletion(ctx, targetID)
	if err != nil {
		return nil, err
	}
	out.Changed = changed
	out.MarkedForDeletion = changed || alreadyMarked

	if changed {
		s.log.Info().
			Str("user_id", targetID.String()).
			Str("actor_id", actor.ID.String()).
			Msg("user marked for deletion")
		recordTransition(ctx, s.audit, s.log, domain.IdentityEvent{
			UserID:     targetID,
			Transition: domain.TransitionMarkedForDeletion,
			ActorID:    actorRef(actor),
			OccurredAt: s.now(),
		})
	}
	return out, nil
}

func (s *UserService) ListMarkedForDeletion(ctx context.Context) ([]*domain.User, error) {
	return s.registry.ListMarkedForDeletion(ctx)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > ports.MaxPage {
		page = ports.MaxPage
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
