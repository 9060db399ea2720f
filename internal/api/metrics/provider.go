package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// InstrumentProvider wraps p so every call is observed in ProviderRequestDuration.
func InstrumentProvider(p ports.IdentityProvider) ports.IdentityProvider {
	return &instrumentedProvider{next: p}
}

type instrumentedProvider struct {
	next ports.IdentityProvider
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind := domain.KindOf(err); kind != nil {
			outcome = kind.Error()
		}
	}
	ProviderRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (p *instrumentedProvider) VerifyCredential(ctx context.Context, token string) (_ *domain.ProviderIdentity, err error) {
	defer func(start time.Time) { observe("verify_credential", start, err) }(time.Now())
	return p.next.VerifyCredential(ctx, token)
}

func (p *instrumentedProvider) SignIn(ctx context.Context, email, password string) (_ *domain.AuthResult, err error) {
	defer func(start time.Time) { observe("sign_in", start, err) }(time.Now())
	return p.next.SignIn(ctx, email, password)
}

func (p *instrumentedProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (_ *domain.AuthResult, err error) {
	defer func(start time.Time) { observe("sign_up", start, err) }(time.Now())
	return p.next.SignUp(ctx, email, password, metadata)
}

func (p *instrumentedProvider) CreateAnonymousSession(ctx context.Context) (_ *domain.AuthResult, err error) {
	defer func(start time.Time) { observe("create_anonymous_session", start, err) }(time.Now())
	return p.next.CreateAnonymousSession(ctx)
}

func (p *instrumentedProvider) UpgradeIdentity(ctx context.Context, id uuid.UUID, email, password string, metadata map[string]any) (_ *domain.ProviderIdentity, err error) {
	defer func(start time.Time) { observe("upgrade_identity", start, err) }(time.Now())
	return p.next.UpgradeIdentity(ctx, id, email, password, metadata)
}

func (p *instrumentedProvider) RefreshSession(ctx context.Context, refreshToken string) (_ *domain.AuthResult, err error) {
	defer func(start time.Time) { observe("refresh_session", start, err) }(time.Now())
	return p.next.RefreshSession(ctx, refreshToken)
}
