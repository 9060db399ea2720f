package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

type fakeProvider struct {
	ports.IdentityProvider
}

func (fakeProvider) SignIn(context.Context, string, string) (*domain.AuthResult, error) {
	return nil, domain.ErrInvalidLogin
}

func (fakeProvider) CreateAnonymousSession(context.Context) (*domain.AuthResult, error) {
	return &domain.AuthResult{}, nil
}

func TestInstrumentProvider_PassesThroughAndObserves(t *testing.T) {
	p := InstrumentProvider(fakeProvider{})
	before := testutil.CollectAndCount(ProviderRequestDuration)

	if _, err := p.SignIn(context.Background(), "a@example.com", "x"); err != domain.ErrInvalidLogin {
		t.Fatalf("err = %v, want the wrapped provider's error", err)
	}
	if res, err := p.CreateAnonymousSession(context.Background()); err != nil || res == nil {
		t.Fatalf("unexpected result: %v %v", res, err)
	}

	// one new series per (operation, outcome): sign_in/invalid credential and create_anonymous_session/ok
	if got := testutil.CollectAndCount(ProviderRequestDuration); got != before+2 {
		t.Fatalf("series = %d, want %d", got, before+2)
	}
}
