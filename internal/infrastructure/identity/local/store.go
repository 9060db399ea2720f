package local

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential is the provider-side record of an identity.
type Credential struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   string
	IsAnonymous    bool
	EmailConfirmed bool
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CredentialStore persists credentials. Lookups of unknown credentials return
// an error wrapping domain.ErrNotFound; a duplicate email returns
// domain.ErrEmailTaken.
type CredentialStore interface {
	Create(ctx context.Context, c *Credential) error
	FindByID(ctx context.Context, id uuid.UUID) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	// Upgrade attaches email and password hash to an anonymous credential.
	Upgrade(ctx context.Context, id uuid.UUID, email, passwordHash string, metadata map[string]any) (*Credential, error)
}

// RefreshStore keeps issued refresh tokens until they expire or are used.
type RefreshStore interface {
	Save(ctx context.Context, token string, id uuid.UUID, ttl time.Duration) error
	// Consume deletes token and returns its owner. Unknown or expired tokens
	// return domain.ErrInvalidRefreshToken.
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}
