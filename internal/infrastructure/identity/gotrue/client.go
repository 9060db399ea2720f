// Package gotrue adapts a GoTrue (Supabase Auth) server to ports.IdentityProvider.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	// JWTSecret enables local verification of access tokens. When empty every
	// verification calls GET /auth/v1/user.
	JWTSecret   string
	AutoConfirm bool
	Timeout     time.Duration
}

// Client talks to the GoTrue REST API. Requests are never retried.
type Client struct {
	http        *resty.Client
	serviceKey  string
	secret      []byte
	autoConfirm bool
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/auth/v1").
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.AnonKey).
		SetRetryCount(0)

	c := &Client{http: hc, serviceKey: cfg.ServiceKey, autoConfirm: cfg.AutoConfirm}
	if cfg.JWTSecret != "" {
		c.secret = []byte(cfg.JWTSecret)
	}
	return c
}

type userDTO struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	IsAnonymous      bool           `json:"is_anonymous"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
}

type sessionDTO struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	TokenType    string   `json:"token_type"`
	User         *userDTO `json:"user"`
}

// signupDTO covers both shapes of the signup response: a session with a
// nested user, or a bare user when confirmation is pending.
type signupDTO struct {
	sessionDTO
	userDTO
}

type errorDTO struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *errorDTO) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func (c *Client) VerifyCredential(ctx context.Context, token string) (*domain.ProviderIdentity, error) {
	if token == "" {
		return nil, domain.ErrMissingCredential
	}
	if c.secret != nil {
		return c.verifyLocally(token)
	}

	var u userDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&u).
		SetError(&apiErr).
		Get("/user")
	if err != nil {
		return nil, domain.ProviderError("get user", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, domain.Wrap(domain.ErrInvalidCredential, errors.New(apiErr.text()), "invalid token")
	case resp.IsError():
		return nil, domain.ProviderError("get user", statusError(resp, &apiErr))
	}
	ident, err := toIdentity(&u)
	if err != nil {
		return nil, domain.ProviderError("get user", err)
	}
	return ident, nil
}

type accessClaims struct {
	Email        string         `json:"email"`
	IsAnonymous  bool           `json:"is_anonymous"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Client) verifyLocally(token string) (*domain.ProviderIdentity, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience("authenticated"))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.Wrap(domain.ErrInvalidCredential, err, "invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.Wrap(domain.ErrInvalidCredential, err, "invalid token subject")
	}
	confirmed, _ := claims.UserMetadata["email_verified"].(bool)
	ident := &domain.ProviderIdentity{
		ID:             id,
		Email:          claims.Email,
		IsAnonymous:    claims.IsAnonymous,
		EmailConfirmed: confirmed,
		Metadata:       claims.UserMetadata,
	}
	if claims.IssuedAt != nil {
		ident.CreatedAt = claims.IssuedAt.Time
	}
	return ident, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var s sessionDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&s).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return nil, domain.ProviderError("sign in", err)
	}
	if resp.IsError() {
		if isEmailNotConfirmed(&apiErr) {
			return nil, domain.ErrEmailNotConfirmed
		}
		if resp.StatusCode() == http.StatusBadRequest {
			return nil, domain.ErrInvalidLogin
		}
		return nil, domain.ProviderError("sign in", statusError(resp, &apiErr))
	}
	return toAuthResult(&s)
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.AuthResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	return c.signup(ctx, "sign up", body)
}

func (c *Client) CreateAnonymousSession(ctx context.Context) (*domain.AuthResult, error) {
	return c.signup(ctx, "anonymous sign in", map[string]any{"data": map[string]any{}})
}

func (c *Client) signup(ctx context.Context, op string, body map[string]any) (*domain.AuthResult, error) {
	var out signupDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/signup")
	if err != nil {
		return nil, domain.ProviderError(op, err)
	}
	if resp.IsError() {
		if isUserExists(&apiErr) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.ProviderError(op, statusError(resp, &apiErr))
	}

	if out.AccessToken != "" {
		return toAuthResult(&out.sessionDTO)
	}
	ident, err := toIdentity(&out.userDTO)
	if err != nil {
		return nil, domain.ProviderError(op, err)
	}
	return &domain.AuthResult{Identity: ident}, nil
}

// UpgradeIdentity uses the admin API so the identifier of the anonymous
// identity is kept.
func (c *Client) UpgradeIdentity(ctx context.Context, id uuid.UUID, email, password string, metadata map[string]any) (*domain.ProviderIdentity, error) {
	body := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": c.autoConfirm,
	}
	if len(metadata) > 0 {
		body["user_metadata"] = metadata
	}

	var u userDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("apikey", c.serviceKey).
		SetAuthToken(c.serviceKey).
		SetBody(body).
		SetResult(&u).
		SetError(&apiErr).
		Put("/admin/users/" + id.String())
	if err != nil {
		return nil, domain.ProviderError("upgrade", err)
	}
	if resp.IsError() {
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, domain.Wrap(domain.ErrNotFound, errors.New(apiErr.text()), "identity %s not found", id)
		case isUserExists(&apiErr):
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.ProviderError("upgrade", statusError(resp, &apiErr))
	}
	ident, err := toIdentity(&u)
	if err != nil {
		return nil, domain.ProviderError("upgrade", err)
	}
	return ident, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	var s sessionDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&s).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return nil, domain.ProviderError("refresh", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, domain.ProviderError("refresh", statusError(resp, &apiErr))
	}
	return toAuthResult(&s)
}

func toAuthResult(s *sessionDTO) (*domain.AuthResult, error) {
	if s.User == nil {
		return nil, domain.ProviderError("decode session", errors.New("session has no user"))
	}
	ident, err := toIdentity(s.User)
	if err != nil {
		return nil, domain.ProviderError("decode session", err)
	}
	return &domain.AuthResult{
		Identity: ident,
		Session: &domain.Session{
			AccessToken:  s.AccessToken,
			RefreshToken: s.RefreshToken,
			ExpiresIn:    s.ExpiresIn,
			ExpiresAt:    s.ExpiresAt,
			TokenType:    s.TokenType,
		},
	}, nil
}

func toIdentity(u *userDTO) (*domain.ProviderIdentity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", u.ID, err)
	}
	return &domain.ProviderIdentity{
		ID:             id,
		Email:          u.Email,
		IsAnonymous:    u.IsAnonymous,
		EmailConfirmed: u.EmailConfirmedAt != nil,
		Metadata:       u.UserMetadata,
		CreatedAt:      u.CreatedAt,
	}, nil
}

func isEmailNotConfirmed(e *errorDTO) bool {
	return e.ErrorCode == "email_not_confirmed" ||
		strings.Contains(strings.ToLower(e.text()), "email not confirmed")
}

func isUserExists(e *errorDTO) bool {
	switch e.ErrorCode {
	case "user_already_exists", "email_exists":
		return true
	}
	return strings.Contains(strings.ToLower(e.text()), "already registered")
}

func statusError(resp *resty.Response, e *errorDTO) error {
	return fmt.Errorf("status %d: %s", resp.StatusCode(), e.text())
}
