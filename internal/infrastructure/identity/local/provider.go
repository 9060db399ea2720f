// Package local is a self-hosted identity provider: credentials live in
// MongoDB, refresh tokens in Redis, and sessions are HS256 JWTs.
package local

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

const (
	issuer   = "bazar"
	audience = "authenticated"

	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Provider implements ports.IdentityProvider.
type Provider struct {
	creds      CredentialStore
	refresh    RefreshStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewProvider(creds CredentialStore, refresh RefreshStore, cfg Config) *Provider {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &Provider{
		creds:      creds,
		refresh:    refresh,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

type claims struct {
	Email       string `json:"email,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
	jwt.RegisteredClaims
}

func (p *Provider) VerifyCredential(ctx context.Context, token string) (*domain.ProviderIdentity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.Wrap(domain.ErrInvalidCredential, err, "invalid token")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, domain.Wrap(domain.ErrInvalidCredential, err, "invalid token subject")
	}

	cred, err := p.creds.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Wrap(domain.ErrInvalidCredential, nil, "token subject no longer exists")
		}
		return nil, domain.ProviderError("verify", err)
	}
	return toIdentity(cred), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidLogin
	}

	cred, err := p.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidLogin
		}
		return nil, domain.ProviderError("sign in", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidLogin
	}
	if !cred.EmailConfirmed {
		return nil, domain.ErrEmailNotConfirmed
	}
	return p.authResult(ctx, cred)
}

// SignUp confirms the email immediately; this provider has no mail delivery.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ProviderError("sign up", err)
	}

	now := p.now().UTC()
	cred := &Credential{
		ID:             uuid.New(),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:   string(hash),
		EmailConfirmed: true,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.ProviderError("sign up", err)
	}
	return p.authResult(ctx, cred)
}

func (p *Provider) CreateAnonymousSession(ctx context.Context) (*domain.AuthResult, error) {
	now := p.now().UTC()
	cred := &Credential{
		ID:          uuid.New(),
		IsAnonymous: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.creds.Create(ctx, cred); err != nil {
		return nil, domain.ProviderError("anonymous sign in", err)
	}
	return p.authResult(ctx, cred)
}

// UpgradeIdentity is idempotent for an identity already upgraded to the same
// email, so a conversion interrupted after this step can be retried.
func (p *Provider) UpgradeIdentity(ctx context.Context, id uuid.UUID, email, password string, metadata map[string]any) (*domain.ProviderIdentity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	cred, err := p.creds.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Wrap(domain.ErrNotFound, err, "identity %s not found", id)
		}
		return nil, domain.ProviderError("upgrade", err)
	}
	if !cred.IsAnonymous && cred.Email != email {
		return nil, domain.Wrap(domain.ErrConflict, nil, "identity %s is not anonymous", id)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ProviderError("upgrade", err)
	}
	upgraded, err := p.creds.Upgrade(ctx, id, email, string(hash), metadata)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.ProviderError("upgrade", err)
	}
	return toIdentity(upgraded), nil
}

// RefreshSession rotates the refresh token: the presented one is consumed.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	id, err := p.refresh.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			return nil, err
		}
		return nil, domain.ProviderError("refresh", err)
	}

	cred, err := p.creds.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, domain.ProviderError("refresh", err)
	}
	return p.authResult(ctx, cred)
}

func (p *Provider) authResult(ctx context.Context, cred *Credential) (*domain.AuthResult, error) {
	session, err := p.issueSession(ctx, cred)
	if err != nil {
		return nil, domain.ProviderError("issue session", err)
	}
	return &domain.AuthResult{Identity: toIdentity(cred), Session: session}, nil
}

func (p *Provider) issueSession(ctx context.Context, cred *Credential) (*domain.Session, error) {
	now := p.now()
	expiresAt := now.Add(p.accessTTL)

	c := claims{
		Email:       cred.Email,
		IsAnonymous: cred.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID.String(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := p.refresh.Save(ctx, refresh, cred.ID, p.refreshTTL); err != nil {
		return nil, err
	}

	return &domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(p.accessTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		TokenType:    "bearer",
	}, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func toIdentity(c *Credential) *domain.ProviderIdentity {
	return &domain.ProviderIdentity{
		ID:             c.ID,
		Email:          c.Email,
		IsAnonymous:    c.IsAnonymous,
		EmailConfirmed: c.EmailConfirmed,
		Metadata:       c.Metadata,
		CreatedAt:      c.CreatedAt,
	}
}
