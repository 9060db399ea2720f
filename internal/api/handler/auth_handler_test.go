package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/api/middleware"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

func TestAuthHandler_Register_Success(t *testing.T) {
	id := uuid.New()
	stub := &stubAuthService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
			if in.Email != "a@example.com" || in.ConfirmPassword != "secret1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.RegisterResult{
				Identity: &domain.ProviderIdentity{ID: id, Email: in.Email},
				Metadata: domain.RegistrationMetadata{UserRole: domain.RoleUser},
			}, nil
		},
	}
	handler := NewAuthHandler(stub, nil, nil)

	c, rec := newTestContext(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@example.com","password":"secret1","confirm_password":"secret1"}`))
	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["user_id"] != id.String() || resp["user_role"] != "user" || resp["onboarding_complete"] != false {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, ok := resp["session"]; ok {
		t.Fatalf("session should be omitted while confirmation is pending")
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.RegisterResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub, nil, nil)

	for name, body := range map[string]string{
		"not json":      "not-json",
		"missing email": `{"password":"secret1","confirm_password":"secret1"}`,
		"bad email":     `{"email":"nope","password":"secret1","confirm_password":"secret1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, "/auth/register", strings.NewReader(body))
			var ve *ValidationError
			if err := handler.Register(c); !errors.As(err, &ve) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*ports.LoginResult, error) {
			if password != "secret" {
				return nil, domain.ErrInvalidLogin
			}
			return &ports.LoginResult{
				Session:  &domain.Session{AccessToken: "token123", TokenType: "bearer"},
				Identity: &domain.ProviderIdentity{ID: uuid.New(), Email: email},
			}, nil
		},
	}
	handler := NewAuthHandler(stub, nil, nil)

	c, rec := newTestContext(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"secret"}`))
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Session.AccessToken != "token123" || resp.User != nil {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}

	c, _ = newTestContext(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"wrong"}`))
	if err := handler.Login(c); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want invalid credential", err)
	}
}

func TestAuthHandler_Refresh_FromHeader(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, token string) (*domain.AuthResult, error) {
			if token != "r1" {
				t.Fatalf("token = %q", token)
			}
			return &domain.AuthResult{Session: &domain.Session{AccessToken: "a2"}}, nil
		},
	}
	handler := NewAuthHandler(stub, nil, nil)

	c, rec := newTestContext(http.MethodPost, "/auth/refresh", nil)
	c.Request().Header.Set("X-Refresh-Token", "r1")
	if err := handler.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_CreateAnonymous(t *testing.T) {
	anon := domain.NewAnonymousUser(uuid.New(), "anon-1", time.Now())
	onboarding := &stubOnboarding{
		createFn: func(context.Context) (*ports.AnonymousSessionResult, error) {
			return &ports.AnonymousSessionResult{User: anon, Session: &domain.Session{AccessToken: "t"}}, nil
		},
	}
	handler := NewAuthHandler(nil, onboarding, nil)

	c, rec := newTestContext(http.MethodPost, "/auth/create-anonymous", nil)
	if err := handler.CreateAnonymous(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"anonymous_id":"anon-1"`) {
		t.Fatalf("anonymous id missing: %s", rec.Body.String())
	}
}

func TestAuthHandler_AnonymousProfile(t *testing.T) {
	anon := domain.NewAnonymousUser(uuid.New(), "anon-1", time.Now())
	handler := NewAuthHandler(nil, nil, nil)

	c, rec := newTestContext(http.MethodGet, "/auth/anonymous-profile", nil)
	middleware.SetUser(c, anon)
	if err := handler.AnonymousProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp anonymousProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != anon.ID || resp.AnonymousID != "anon-1" || !resp.IsAnonymous {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_ConvertAnonymous(t *testing.T) {
	anon := domain.NewAnonymousUser(uuid.New(), "anon-1", time.Now())
	called := false
	onboarding := &stubOnboarding{
		convertFn: func(_ context.Context, u *domain.User, in ports.ConvertInput) (*domain.ConversionResult, error) {
			called = true
			if u != anon || in.Email != "c@example.com" || in.Name != "Cee" {
				t.Fatalf("unexpected args: %+v %+v", u, in)
			}
			converted := *u
			converted.IsAnonymous = false
			converted.Email = domain.StringPtr(in.Email)
			converted.ConvertedFromAnonymousID = u.AnonymousID
			converted.AnonymousID = nil
			return &domain.ConversionResult{User: &converted, RequiresEmailConfirmation: true}, nil
		},
	}
	handler := NewAuthHandler(nil, onboarding, nil)

	c, _ := newTestContext(http.MethodPost, "/auth/convert-anonymous",
		strings.NewReader(`{"email":"c@example.com","password":"secret1","confirm_password":"other1"}`))
	middleware.SetUser(c, anon)
	if err := handler.ConvertAnonymous(c); !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("err = %v, want password mismatch", err)
	}
	if called {
		t.Fatalf("service called despite mismatch")
	}

	c, rec := newTestContext(http.MethodPost, "/auth/convert-anonymous",
		strings.NewReader(`{"email":"c@example.com","password":"secret1","confirm_password":"secret1","name":"Cee"}`))
	middleware.SetUser(c, anon)
	if err := handler.ConvertAnonymous(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["requires_email_confirmation"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	user := resp["user"].(map[string]any)
	if user["id"] != anon.ID.String() || user["converted_from_anonymous_id"] != "anon-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthHandler_CompleteOnboarding(t *testing.T) {
	ident := &domain.ProviderIdentity{ID: uuid.New(), Email: "v@example.com"}
	onboarding := &stubOnboarding{
		completeFn: func(_ context.Context, got *domain.ProviderIdentity, name string) (*domain.User, error) {
			if got != ident || name != "Vee" {
				t.Fatalf("unexpected args: %+v %q", got, name)
			}
			return domain.NewVerifiedUser(got.ID, got.Email, domain.StringPtr(name), time.Now()), nil
		},
	}
	handler := NewAuthHandler(nil, onboarding, nil)

	c, _ := newTestContext(http.MethodPost, "/auth/complete-onboarding", strings.NewReader(`{"name":"Vee"}`))
	if err := handler.CompleteOnboarding(c); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want invalid credential without identity", err)
	}

	c, rec := newTestContext(http.MethodPost, "/auth/complete-onboarding", strings.NewReader(`{"name":"Vee"}`))
	middleware.SetIdentity(c, ident)
	if err := handler.CompleteOnboarding(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestAuthHandler_MarkForDeletion(t *testing.T) {
	actor := domain.NewVerifiedUser(uuid.New(), "a@example.com", nil, time.Now())
	target := uuid.New()
	users := &stubUserService{
		markFn: func(_ context.Context, got *domain.User, id uuid.UUID) (*ports.MarkForDeletionResult, error) {
			if got != actor || id != target {
				t.Fatalf("unexpected args")
			}
			return &ports.MarkForDeletionResult{UserID: id, Changed: false, MarkedForDeletion: true}, nil
		},
	}
	handler := NewAuthHandler(nil, nil, users)

	c, rec := newTestContext(http.MethodPost, "/auth/mark-for-deletion", strings.NewReader(`{"user_id":"`+target.String()+`"}`))
	middleware.SetUser(c, actor)
	if err := handler.MarkForDeletion(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp markForDeletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Success || !resp.MarkedForDeletion || resp.Changed {
		t.Fatalf("unexpected payload: %+v", resp)
	}

	c, _ = newTestContext(http.MethodPost, "/auth/mark-for-deletion", strings.NewReader(`{"user_id":"nope"}`))
	middleware.SetUser(c, actor)
	var ve *ValidationError
	if err := handler.MarkForDeletion(c); !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestAuthHandler_UsersMarkedForDeletion_Empty(t *testing.T) {
	users := &stubUserService{markedFn: func(context.Context) ([]*domain.User, error) { return nil, nil }}
	handler := NewAuthHandler(nil, nil, users)

	c, rec := newTestContext(http.MethodGet, "/auth/users-marked-for-deletion", nil)
	if err := handler.UsersMarkedForDeletion(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"users":[],"count":0}` {
		t.Fatalf("body = %s", got)
	}
}
