package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the token pair issued by the identity provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

// ProviderIdentity is what the identity provider knows about a credential
// holder. Its ID is the key of the local User row.
type ProviderIdentity struct {
	ID             uuid.UUID      `json:"id"`
	Email          string         `json:"email,omitempty"`
	IsAnonymous    bool           `json:"is_anonymous"`
	EmailConfirmed bool           `json:"email_confirmed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AuthResult pairs a provider identity with the session it was issued.
type AuthResult struct {
	Identity *ProviderIdentity `json:"user"`
	Session  *Session          `json:"session,omitempty"`
}

// ConversionResult describes the outcome of converting an anonymous user.
// Session is nil when the provider requires email confirmation first.
type ConversionResult struct {
	User                      *User    `json:"user"`
	Session                   *Session `json:"session,omitempty"`
	RequiresEmailConfirmation bool     `json:"requires_email_confirmation"`
}

// State is the lifecycle position reached by the conversion.
func (r *ConversionResult) State() LifecycleState {
	if r.RequiresEmailConfirmation {
		return StateVerifiedPendingConfirmation
	}
	return StateVerifiedActive
}

// RegistrationMetadata is returned to a newly registered provider identity
// that has not completed onboarding yet.
type RegistrationMetadata struct {
	EmailVerified      bool     `json:"email_verified"`
	OnboardingComplete bool     `json:"onboarding_complete"`
	UserRole           RoleName `json:"user_role"`
}

// IdentityEvent is an entry of the lifecycle audit trail.
type IdentityEvent struct {
	UserID     uuid.UUID         `json:"user_id"`
	Transition string            `json:"transition"`
	From       LifecycleState    `json:"from"`
	To         LifecycleState    `json:"to"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const (
	TransitionAnonymousCreated  = "anonymous_created"
	TransitionOnboarded         = "onboarded"
	TransitionConverted         = "converted"
	TransitionMarkedForDeletion = "marked_for_deletion"
)
