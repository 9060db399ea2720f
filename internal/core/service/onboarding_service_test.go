package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

func newOnboardingSvc(p *stubProvider, reg *memRegistry, audit *stubAudit) *OnboardingService {
	svc := NewOnboardingService(p, reg, audit, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func anonymousProvider(id uuid.UUID) *stubProvider {
	return &stubProvider{
		anonymousFn: func(context.Context) (*domain.AuthResult, error) {
			return &domain.AuthResult{
				Identity: &domain.ProviderIdentity{ID: id, IsAnonymous: true},
				Session:  &domain.Session{AccessToken: "anon-token", RefreshToken: "anon-refresh"},
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// CreateAnonymous
// ---------------------------------------------------------------------------

func TestOnboarding_CreateAnonymous_UnifiesIdentifier(t *testing.T) {
	providerID := uuid.New()
	reg := newMemRegistry()
	audit := &stubAudit{}
	svc := newOnboardingSvc(anonymousProvider(providerID), reg, audit)

	res, err := svc.CreateAnonymous(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.User.ID != providerID {
		t.Fatalf("expected user id %s, got %s", providerID, res.User.ID)
	}
	if !res.User.IsAnonymous || res.User.AnonymousID == nil || res.User.Email != nil {
		t.Fatalf("expected anonymous row, got %+v", res.User)
	}
	if res.Session == nil || res.Session.AccessToken != "anon-token" {
		t.Fatalf("expected provider session to be returned")
	}

	stored := reg.get(providerID)
	if stored == nil {
		t.Fatalf("expected stored user")
	}
	roles, _ := reg.RolesOf(context.Background(), providerID)
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Fatalf("expected default role, got %v", roles)
	}
	if reg.txCount != 1 {
		t.Fatalf("expected a single transaction, got %d", reg.txCount)
	}
	if len(audit.events) != 1 || audit.events[0].Transition != domain.TransitionAnonymousCreated {
		t.Fatalf("expected anonymous_created audit event, got %+v", audit.events)
	}
}

func TestOnboarding_CreateAnonymous_RoleFailureRollsBack(t *testing.T) {
	providerID := uuid.New()
	reg := newMemRegistry()
	reg.assignErr = errors.New("role table unavailable")
	svc := newOnboardingSvc(anonymousProvider(providerID), reg, &stubAudit{})

	if _, err := svc.CreateAnonymous(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if reg.get(providerID) != nil {
		t.Fatalf("user row must be rolled back when role assignment fails")
	}
}

func TestOnboarding_CreateAnonymous_RejectsExistingIdentity(t *testing.T) {
	reg := newMemRegistry()
	existing := seededAnonymous(reg, "anon-1")
	audit := &stubAudit{}
	svc := newOnboardingSvc(anonymousProvider(existing.ID), reg, audit)

	_, err := svc.CreateAnonymous(context.Background())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if got := reg.get(existing.ID); domain.StringValue(got.AnonymousID) != "anon-1" {
		t.Fatalf("existing row must be untouched, got %+v", got)
	}
	if len(audit.events) != 0 {
		t.Fatalf("no transition should be recorded, got %+v", audit.events)
	}
}

func TestOnboarding_CreateAnonymous_ProviderFailure(t *testing.T) {
	reg := newMemRegistry()
	p := &stubProvider{
		anonymousFn: func(context.Context) (*domain.AuthResult, error) {
			return nil, domain.ProviderError("create_anonymous_session", errors.New("timeout"))
		},
	}
	svc := newOnboardingSvc(p, reg, &stubAudit{})

	_, err := svc.CreateAnonymous(context.Background())
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if len(reg.users) != 0 {
		t.Fatalf("no local row expected")
	}
}

func TestOnboarding_CreateAnonymous_AuditFailureIsNonFatal(t *testing.T) {
	reg := newMemRegistry()
	svc := newOnboardingSvc(anonymousProvider(uuid.New()), reg, &stubAudit{err: errors.New("mongo down")})

	if _, err := svc.CreateAnonymous(context.Background()); err != nil {
		t.Fatalf("audit failure must not fail the request: %v", err)
	}
}

// ---------------------------------------------------------------------------
// CompleteOnboarding
// ---------------------------------------------------------------------------

func TestOnboarding_CompleteOnboarding_Success(t *testing.T) {
	reg := newMemRegistry()
	svc := newOnboardingSvc(&stubProvider{}, reg, &stubAudit{})
	identity := &domain.ProviderIdentity{ID: uuid.New(), Email: "Alice@Example.com", EmailConfirmed: true}

	user, err := svc.CompleteOnboarding(context.Background(), identity, "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != identity.ID {
		t.Fatalf("expected id %s, got %s", identity.ID, user.ID)
	}
	if domain.StringValue(user.Email) != "alice@example.com" || user.IsAnonymous {
		t.Fatalf("unexpected user %+v", user)
	}
	roles, _ := reg.RolesOf(context.Background(), user.ID)
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Fatalf("expected default role, got %v", roles)
	}
}

func TestOnboarding_CompleteOnboarding_Conflicts(t *testing.T) {
	existing := domain.NewVerifiedUser(uuid.New(), "taken@example.com", nil, time.Now())

	cases := []struct {
		name     string
		identity *domain.ProviderIdentity
		want     error
	}{
		{"same id", &domain.ProviderIdentity{ID: existing.ID, Email: "other@example.com"}, domain.ErrAlreadyOnboarded},
		{"same email", &domain.ProviderIdentity{ID: uuid.New(), Email: "taken@example.com"}, domain.ErrEmailTaken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := newMemRegistry()
			reg.seed(existing, domain.RoleUser)
			svc := newOnboardingSvc(&stubProvider{}, reg, &stubAudit{})

			_, err := svc.CompleteOnboarding(context.Background(), tc.identity, "")
			if !errors.Is(err, tc.want) || !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOnboarding_CompleteOnboarding_RejectsAnonymousIdentity(t *testing.T) {
	svc := newOnboardingSvc(&stubProvider{}, newMemRegistry(), &stubAudit{})

	_, err := svc.CompleteOnboarding(context.Background(), &domain.ProviderIdentity{ID: uuid.New(), IsAnonymous: true}, "")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	_, err = svc.CompleteOnboarding(context.Background(), &domain.ProviderIdentity{ID: uuid.New()}, "")
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation for missing email, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// ConvertAnonymous
// ---------------------------------------------------------------------------

func seededAnonymous(reg *memRegistry, anonymousID string) *domain.User {
	u := domain.NewAnonymousUser(uuid.New(), anonymousID, time.Now().UTC())
	reg.seed(u, domain.RoleUser)
	return u
}

func convertingProvider(signInErr error) *stubProvider {
	return &stubProvider{
		upgradeFn: func(_ context.Context, id uuid.UUID, email, _ string, _ map[string]any) (*domain.ProviderIdentity, error) {
			return &domain.ProviderIdentity{ID: id, Email: email}, nil
		},
		signInFn: func(_ context.Context, email, _ string) (*domain.AuthResult, error) {
			if signInErr != nil {
				return nil, signInErr
			}
			return &domain.AuthResult{
				Identity: &domain.ProviderIdentity{ID: uuid.New(), Email: email, EmailConfirmed: true},
				Session:  &domain.Session{AccessToken: "verified-token"},
			}, nil
		},
	}
}

func TestOnboarding_ConvertAnonymous_PreservesIdentifier(t *testing.T) {
	reg := newMemRegistry()
	anon := seededAnonymous(reg, "anon-123")
	audit := &stubAudit{}
	p := convertingProvider(nil)
	svc := newOnboardingSvc(p, reg, audit)

	res, err := svc.ConvertAnonymous(context.Background(), anon, ports.ConvertInput{
		Email: "new@example.com", Password: "pw-123456", Name: "New",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := res.User
	if u.ID != anon.ID {
		t.Fatalf("id changed on conversion: %s -> %s", anon.ID, u.ID)
	}
	if u.IsAnonymous || u.AnonymousID != nil || domain.StringValue(u.Email) != "new@example.com" {
		t.Fatalf("unexpected converted row %+v", u)
	}
	if domain.StringValue(u.ConvertedFromAnonymousID) != "anon-123" {
		t.Fatalf("expected converted_from_anonymous_id=anon-123, got %v", u.ConvertedFromAnonymousID)
	}
	if res.RequiresEmailConfirmation || res.Session == nil {
		t.Fatalf("expected a session without confirmation requirement")
	}
	if got := p.calls; len(got) != 2 || got[0] != "upgrade" || got[1] != "sign_in" {
		t.Fatalf("expected upgrade then sign_in, got %v", got)
	}
	if len(audit.events) != 1 || audit.events[0].To != domain.StateVerifiedActive {
		t.Fatalf("expected converted audit event, got %+v", audit.events)
	}
}

func TestOnboarding_ConvertAnonymous_EmailNotConfirmed(t *testing.T) {
	reg := newMemRegistry()
	anon := seededAnonymous(reg, "anon-1")
	svc := newOnboardingSvc(convertingProvider(domain.ErrEmailNotConfirmed), reg, &stubAudit{})

	res, err := svc.ConvertAnonymous(context.Background(), anon, ports.ConvertInput{Email: "c@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.RequiresEmailConfirmation || res.Session != nil {
		t.Fatalf("expected confirmation requirement without session, got %+v", res)
	}
	if res.State() != domain.StateVerifiedPendingConfirmation {
		t.Fatalf("expected pending confirmation state, got %s", res.State())
	}
	stored := reg.get(anon.ID)
	if stored.IsAnonymous || domain.StringValue(stored.Email) != "c@example.com" {
		t.Fatalf("local row must be converted, got %+v", stored)
	}
}

func TestOnboarding_ConvertAnonymous_UpgradeFailureLeavesRowUntouched(t *testing.T) {
	reg := newMemRegistry()
	anon := seededAnonymous(reg, "anon-1")
	p := &stubProvider{
		upgradeFn: func(context.Context, uuid.UUID, string, string, map[string]any) (*domain.ProviderIdentity, error) {
			return nil, domain.ProviderError("upgrade_identity", errors.New("502"))
		},
	}
	svc := newOnboardingSvc(p, reg, &stubAudit{})

	_, err := svc.ConvertAnonymous(context.Background(), anon, ports.ConvertInput{Email: "c@example.com", Password: "pw"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	stored := reg.get(anon.ID)
	if !stored.IsAnonymous || domain.StringValue(stored.AnonymousID) != "anon-1" {
		t.Fatalf("row must stay anonymous, got %+v", stored)
	}
	if len(p.calls) != 1 {
		t.Fatalf("sign-in must not run after a failed upgrade: %v", p.calls)
	}
}

func TestOnboarding_ConvertAnonymous_SignInFailureAborts(t *testing.T) {
	reg := newMemRegistry()
	anon := seededAnonymous(reg, "anon-1")
	svc := newOnboardingSvc(convertingProvider(domain.ProviderError("sign_in", errors.New("503"))), reg, &stubAudit{})

	if _, err := svc.ConvertAnonymous(context.Background(), anon, ports.ConvertInput{Email: "c@example.com", Password: "pw"}); err == nil {
		t.Fatalf("expected error")
	}
	if !reg.get(anon.ID).IsAnonymous {
		t.Fatalf("row must stay anonymous")
	}
}

func TestOnboarding_ConvertAnonymous_EmailOwnedByOtherUser(t *testing.T) {
	reg := newMemRegistry()
	anon := seededAnonymous(reg, "anon-1")
	reg.seed(domain.NewVerifiedUser(uuid.New(), "taken@example.com", nil, time.Now()), domain.RoleUser)
	p := convertingProvider(nil)
	svc := newOnboardingSvc(p, reg, &stubAudit{})

	_, err := svc.ConvertAnonymous(context.Background(), anon, ports.ConvertInput{Email: "taken@example.com", Password: "pw"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("provider must not be called on conflict: %v", p.calls)
	}
}

func TestOnboarding_ConvertAnonymous_RejectsVerifiedUser(t *testing.T) {
	reg := newMemRegistry()
	verified := domain.NewVerifiedUser(uuid.New(), "v@example.com", nil, time.Now())
	reg.seed(verified, domain.RoleUser)
	p := convertingProvider(nil)
	svc := newOnboardingSvc(p, reg, &stubAudit{})

	_, err := svc.ConvertAnonymous(context.Background(), verified, ports.ConvertInput{Email: "x@example.com", Password: "pw"})
	if !errors.Is(err, domain.ErrInvalidTransition) || !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("provider must not be called for a verified user: %v", p.calls)
	}
	if got := reg.get(verified.ID); got.IsAnonymous || domain.StringValue(got.Email) != "v@example.com" {
		t.Fatalf("verified row must be untouched, got %+v", got)
	}

	_, err = svc.ConvertAnonymous(context.Background(), nil, ports.ConvertInput{Email: "x@example.com", Password: "pw"})
	if !errors.Is(err, domain.ErrAnonymousUserNotFound) {
		t.Fatalf("expected anonymous user not found for nil user, got %v", err)
	}
}

func TestOnboarding_CreateThenConvertScenario(t *testing.T) {
	providerID := uuid.New()
	reg := newMemRegistry()
	p := convertingProvider(nil)
	p.anonymousFn = anonymousProvider(providerID).anonymousFn
	svc := newOnboardingSvc(p, reg, &stubAudit{})
	users := NewUserService(reg, nil, zerolog.Nop())

	created, err := svc.CreateAnonymous(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	anonID := domain.StringValue(created.User.AnonymousID)

	if _, err := users.GetByAnonymousID(context.Background(), anonID); err != nil {
		t.Fatalf("anonymous profile should resolve before conversion: %v", err)
	}

	res, err := svc.ConvertAnonymous(context.Background(), created.User, ports.ConvertInput{Email: "x@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.User.ID != providerID || domain.StringValue(res.User.ConvertedFromAnonymousID) != anonID {
		t.Fatalf("unexpected converted user %+v", res.User)
	}

	if _, err := users.GetByAnonymousID(context.Background(), anonID); !errors.Is(err, domain.ErrAnonymousUserNotFound) {
		t.Fatalf("old anonymous id must no longer resolve, got %v", err)
	}
}
