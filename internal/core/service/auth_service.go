package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// AuthService implements registration, login and session refresh against the
// identity provider.
type AuthService struct {
	provider ports.IdentityProvider
	registry ports.UserRegistry
	log      zerolog.Logger
}

func NewAuthService(provider ports.IdentityProvider, registry ports.UserRegistry, log zerolog.Logger) *AuthService {
	return &AuthService{provider: provider, registry: registry, log: log}
}

// Register creates a verified provider identity. The local row is created
// later by onboarding completion.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*ports.RegisterResult, error) {
	if input.Password != input.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, domain.ErrInvalidLogin
	}

	meta := map[string]any{"system_role": string(domain.DefaultRole)}
	if name := strings.TrimSpace(input.Name); name != "" {
		meta["name"] = name
	}

	res, err := s.provider.SignUp(ctx, email, input.Password, meta)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Identity == nil {
		return nil, domain.ProviderError("sign_up", errors.New("no identity returned"))
	}

	s.log.Info().
		Str("user_id", res.Identity.ID.String()).
		Bool("email_confirmed", res.Identity.EmailConfirmed).
		Msg("identity registered")

	return &ports.RegisterResult{
		Identity: res.Identity,
		Session:  res.Session,
		Metadata: domain.RegistrationMetadata{
			EmailVerified:      res.Identity.EmailConfirmed,
			OnboardingComplete: false,
			UserRole:           domain.DefaultRole,
		},
	}, nil
}

// Login signs in with email and password. The local user is attached when
// onboarding has been completed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidLogin
	}

	res, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	out := &ports.LoginResult{Session: res.Session, Identity: res.Identity}
	user, err := s.registry.FindByID(ctx, res.Identity.ID)
	switch {
	case err == nil:
		out.User = user
	case errors.Is(err, domain.ErrNotFound):
		s.log.Debug().Str("user_id", res.Identity.ID.String()).Msg("login before onboarding")
	default:
		return nil, err
	}
	return out, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidRefreshToken
	}
	return s.provider.RefreshSession(ctx, refreshToken)
}
