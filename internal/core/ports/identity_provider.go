package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// IdentityProvider is the external authority that issues and verifies
// credentials. Implementations never retry; failures surface as
// domain.ErrProviderFailure unless a more specific class applies.
type IdentityProvider interface {
	// VerifyCredential resolves a bearer token to the identity it was issued
	// for. Invalid or expired tokens return domain.ErrInvalidCredential.
	VerifyCredential(ctx context.Context, token string) (*domain.ProviderIdentity, error)
	// SignIn exchanges email and password for a session. An unconfirmed email
	// returns domain.ErrEmailNotConfirmed.
	SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error)
	// SignUp registers a verified identity. Session is nil when the provider
	// requires email confirmation before issuing one.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.AuthResult, error)
	CreateAnonymousSession(ctx context.Context) (*domain.AuthResult, error)
	// UpgradeIdentity attaches email and password to an existing anonymous
	// identity, keeping its identifier.
	UpgradeIdentity(ctx context.Context, id uuid.UUID, email, password string, metadata map[string]any) (*domain.ProviderIdentity, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
}
