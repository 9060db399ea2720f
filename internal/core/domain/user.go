package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the position of an identity in the onboarding lifecycle.
type LifecycleState string

const (
	StateNonexistent                 LifecycleState = "nonexistent"
	StateAnonymous                   LifecycleState = "anonymous"
	StateVerifiedPendingConfirmation LifecycleState = "verified_pending_confirmation"
	StateVerifiedActive              LifecycleState = "verified_active"
)

var validTransitions = map[LifecycleState][]LifecycleState{
	StateNonexistent:                 {StateAnonymous, StateVerifiedPendingConfirmation, StateVerifiedActive},
	StateAnonymous:                   {StateVerifiedPendingConfirmation, StateVerifiedActive},
	StateVerifiedPendingConfirmation: {StateVerifiedActive},
}

// CanTransitionTo reports whether an identity may move from s to next.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidTransition, naming both states, when the
// lifecycle forbids moving from s to next.
func (s LifecycleState) Transition(next LifecycleState) error {
	if s.CanTransitionTo(next) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// User is the local registry row. ID equals the identity provider's
// identifier and never changes, including across anonymous conversion.
type User struct {
	ID                       uuid.UUID  `json:"id"`
	Email                    *string    `json:"email"`
	Name                     *string    `json:"name"`
	ProfileImageURL          *string    `json:"profile_image_url"`
	IsAnonymous              bool       `json:"is_anonymous"`
	AnonymousID              *string    `json:"anonymous_id,omitempty"`
	ConvertedFromAnonymousID *string    `json:"converted_from_anonymous_id,omitempty"`
	MarkedForDeletion        bool       `json:"marked_for_deletion"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	DeletedAt                *time.Time `json:"-"`
}

// NewAnonymousUser builds the row created together with an anonymous session.
func NewAnonymousUser(id uuid.UUID, anonymousID string, now time.Time) *User {
	return &User{
		ID:          id,
		IsAnonymous: true,
		AnonymousID: &anonymousID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewVerifiedUser builds the row created by onboarding completion.
func NewVerifiedUser(id uuid.UUID, email string, name *string, now time.Time) *User {
	return &User{
		ID:        id,
		Email:     &email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the email/anonymous exclusivity invariant: a row is either
// anonymous (no email, anonymous id set) or verified (email set, no anonymous id).
func (u *User) Validate() error {
	hasEmail := u.Email != nil && *u.Email != ""
	hasAnonID := u.AnonymousID != nil && *u.AnonymousID != ""

	if u.IsAnonymous {
		if hasEmail || !hasAnonID {
			return ErrInvalidUserState
		}
		return nil
	}
	if !hasEmail || hasAnonID {
		return ErrInvalidUserState
	}
	return nil
}

// LifecycleState derives the lifecycle position of a stored row. Pending
// confirmation lives only at the provider, so stored rows are either
// anonymous or active.
func (u *User) LifecycleState() LifecycleState {
	if u == nil || u.DeletedAt != nil {
		return StateNonexistent
	}
	if u.IsAnonymous {
		return StateAnonymous
	}
	return StateVerifiedActive
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringPtr returns nil for the empty string and &s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
