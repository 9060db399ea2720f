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

// OnboardingService moves identities through the lifecycle. Every local
// mutation happens only after the provider call it depends on has returned.
type OnboardingService struct {
	provider ports.IdentityProvider
	registry ports.UserRegistry
	audit    ports.AuditLog
	log      zerolog.Logger

	now            func() time.Time
	newAnonymousID func() string
}

func NewOnboardingService(
	provider ports.IdentityProvider,
	registry ports.UserRegistry,
	audit ports.AuditLog,
	log zerolog.Logger,
) *OnboardingService {
	return &OnboardingService{
		provider:       provider,
		registry:       registry,
		audit:          audit,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
		newAnonymousID: uuid.NewString,
	}
}

// CreateAnonymous issues an anonymous provider session and stores the matching
// local row with the default role. The provider session is not revoked when
// the local write fails.
func (s *OnboardingService) CreateAnonymous(ctx context.Context) (*ports.AnonymousSessionResult, error) {
	res, err := s.provider.CreateAnonymousSession(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Identity == nil {
		return nil, domain.ProviderError("create_anonymous_session", errors.New("no identity returned"))
	}

	from, err := s.storedState(ctx, res.Identity.ID)
	if err != nil {
		return nil, err
	}
	if err := from.Transition(domain.StateAnonymous); err != nil {
		s.log.Error().Err(err).
			Str("user_id", res.Identity.ID.String()).
			Msg("provider issued an anonymous session for an existing user")
		return nil, err
	}

	user := domain.NewAnonymousUser(res.Identity.ID, s.newAnonymousID(), s.now())
	if err := s.createWithDefaultRole(ctx, user); err != nil {
		s.log.Error().Err(err).
			Str("user_id", user.ID.String()).
			Msg("anonymous provider session issued but local user creation failed")
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("anonymous user created")
	recordTransition(ctx, s.audit, s.log, domain.IdentityEvent{
		UserID:     user.ID,
		Transition: domain.TransitionAnonymousCreated,
		From:       from,
		To:         domain.StateAnonymous,
		OccurredAt: user.CreatedAt,
	})

	return &ports.AnonymousSessionResult{User: user, Session: res.Session}, nil
}

// CompleteOnboarding creates the local row for a verified provider identity.
func (s *OnboardingService) CompleteOnboarding(ctx context.Context, identity *domain.ProviderIdentity, name string) (*domain.User, error) {
	if identity == nil || identity.IsAnonymous {
		return nil, domain.ErrAnonymousNotAllowed
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, domain.ErrIdentityWithoutEmail
	}

	from, err := s.storedState(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if from != domain.StateNonexistent {
		return nil, domain.ErrAlreadyOnboarded
	}
	if err := from.Transition(domain.StateVerifiedActive); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, email, identity.ID); err != nil {
		return nil, err
	}

	user := domain.NewVerifiedUser(identity.ID, email, domain.StringPtr(strings.TrimSpace(name)), s.now())
	if err := s.createWithDefaultRole(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user onboarded")
	recordTransition(ctx, s.audit, s.log, domain.IdentityEvent{
		UserID:     user.ID,
		Transition: domain.TransitionOnboarded,
		From:       from,
		To:         domain.StateVerifiedActive,
		ActorID:    actorRef(user),
		OccurredAt: user.CreatedAt,
	})

	return user, nil
}

// ConvertAnonymous upgrades the provider identity of an anonymous user in
// place, signs in with the new credentials and then rewrites the local row.
// An unconfirmed email still converts the row; the result then carries no
// session and asks for confirmation.
func (s *OnboardingService) ConvertAnonymous(ctx context.Context, user *domain.User, input ports.ConvertInput) (*domain.ConversionResult, error) {
	from := user.LifecycleState()
	if from == domain.StateNonexistent {
		return nil, domain.ErrAnonymousUserNotFound
	}
	if err := from.Transition(domain.StateVerifiedPendingConfirmation); err != nil {
		return nil, err
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, domain.ErrIdentityWithoutEmail
	}
	if err := s.ensureEmailAvailable(ctx, email, user.ID); err != nil {
		return nil, err
	}

	log := s.log.With().Str("user_id", user.ID.String()).Logger()

	var meta map[string]any
	name := strings.TrimSpace(input.Name)
	if name != "" {
		meta = map[string]any{"name": name}
	}
	if _, err := s.provider.UpgradeIdentity(ctx, user.ID, email, input.Password, meta); err != nil {
		log.Warn().Err(err).Msg("provider rejected identity upgrade")
		return nil, err
	}

	var (
		session              *domain.Session
		requiresConfirmation bool
	)
	auth, err := s.provider.SignIn(ctx, email, input.Password)
	switch {
	case err == nil:
		session = auth.Session
	case errors.Is(err, domain.ErrEmailNotConfirmed):
		requiresConfirmation = true
	default:
		log.Error().Err(err).Msg("identity upgraded at provider but sign-in failed, local row left anonymous")
		return nil, err
	}

	result := &domain.ConversionResult{RequiresEmailConfirmation: requiresConfirmation}
	if err := from.Transition(result.State()); err != nil {
		return nil, err
	}

	var converted *domain.User
	err = s.registry.WithinTx(ctx, func(tx ports.UserRegistry) error {
		u, err := tx.ConvertAnonymous(ctx, user.ID, email, domain.StringPtr(name))
		if err != nil {
			return err
		}
		if err := u.Validate(); err != nil {
			return err
		}
		converted = u
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("identity upgraded at provider but local conversion failed")
		return nil, err
	}

	result.User = converted
	result.Session = session

	log.Info().Bool("requires_email_confirmation", requiresConfirmation).Msg("anonymous user converted")
	recordTransition(ctx, s.audit, s.log, domain.IdentityEvent{
		UserID:     converted.ID,
		Transition: domain.TransitionConverted,
		From:       from,
		To:         result.State(),
		ActorID:    actorRef(user),
		Details: map[string]string{
			"converted_from_anonymous_id": domain.StringValue(converted.ConvertedFromAnonymousID),
		},
		OccurredAt: converted.UpdatedAt,
	})

	return result, nil
}

// storedState is the lifecycle position of the local row for id.
func (s *OnboardingService) storedState(ctx context.Context, id uuid.UUID) (domain.LifecycleState, error) {
	u, err := s.registry.FindByID(ctx, id)
	switch {
	case err == nil:
		return u.LifecycleState(), nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.StateNonexistent, nil
	default:
		return "", err
	}
}

func (s *OnboardingService) ensureEmailAvailable(ctx context.Context, email string, owner uuid.UUID) error {
	existing, err := s.registry.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != owner:
		return domain.ErrEmailTaken
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *OnboardingService) createWithDefaultRole(ctx context.Context, user *domain.User) error {
	return createWithDefaultRole(ctx, s.registry, user)
}

// createWithDefaultRole inserts user and assigns domain.DefaultRole in one
// transaction.
func createWithDefaultRole(ctx context.Context, registry ports.UserRegistry, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return registry.WithinTx(ctx, func(tx ports.UserRegistry) error {
		if err := tx.Create(ctx, user); err != nil {
			return err
		}
		return tx.AssignRole(ctx, user.ID, domain.DefaultRole)
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
