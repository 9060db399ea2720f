package ports

import (
	"context"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// RegisterInput carries a self-service registration request.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// RegisterResult is returned by Register. Session is nil while the provider
// waits for email confirmation.
type RegisterResult struct {
	Identity *domain.ProviderIdentity
	Session  *domain.Session
	Metadata domain.RegistrationMetadata
}

// LoginResult pairs the provider session with the local user row. User is
// nil until the identity completes onboarding.
type LoginResult struct {
	Session  *domain.Session
	Identity *domain.ProviderIdentity
	User     *domain.User
}

// AuthService covers the credential endpoints that do not touch the
// lifecycle state machine.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
}
