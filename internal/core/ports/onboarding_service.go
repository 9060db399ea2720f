package ports

import (
	"context"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// AnonymousSessionResult is returned by CreateAnonymous.
type AnonymousSessionResult struct {
	User    *domain.User
	Session *domain.Session
}

// ConvertInput carries the credentials an anonymous user converts with.
type ConvertInput struct {
	Email    string
	Password string
	Name     string
}

// OnboardingService drives the identity lifecycle:
// nonexistent -> anonymous -> verified.
type OnboardingService interface {
	CreateAnonymous(ctx context.Context) (*AnonymousSessionResult, error)
	CompleteOnboarding(ctx context.Context, identity *domain.ProviderIdentity, name string) (*domain.User, error)
	ConvertAnonymous(ctx context.Context, user *domain.User, input ConvertInput) (*domain.ConversionResult, error)
}
