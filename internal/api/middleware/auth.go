package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// AnonymousIDHeader carries the anonymous identifier on the anonymous profile route.
const AnonymousIDHeader = "X-Anonymous-ID"

var (
	errMalformedAuthorization = domain.Wrap(domain.ErrInvalidCredential, nil, "invalid authorization header")
	errMissingAnonymousID     = domain.Wrap(domain.ErrInvalidCredential, nil, "missing anonymous identifier")
)

// Authenticate verifies the bearer token with the identity provider and stores
// the resulting identity in the context.
func Authenticate(provider ports.IdentityProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("invalid_credential").Inc()
				return err
			}

			ident, err := provider.VerifyCredential(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidCredential) {
					metrics.AuthFailuresTotal.WithLabelValues("invalid_credential").Inc()
				}
				return err
			}

			SetIdentity(c, ident)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrMissingCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errMalformedAuthorization
	}
	return strings.TrimSpace(parts[1]), nil
}

// ResolveUser loads the local user for the authenticated identity. A valid
// identity without a local row is rejected as not registered, which is
// distinct from an invalid credential.
func ResolveUser(registry ports.UserRegistry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident := Identity(c)
			if ident == nil {
				return domain.ErrMissingCredential
			}

			user, err := registry.FindByID(c.Request().Context(), ident.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					metrics.AuthFailuresTotal.WithLabelValues("not_registered").Inc()
					return domain.ErrUserNotRegistered
				}
				return err
			}

			SetUser(c, user)
			return next(c)
		}
	}
}

// ResolveAnonymous resolves an anonymous user from the X-Anonymous-ID header
// or the anonymous_id query parameter. It does not consult roles or policies.
func ResolveAnonymous(users ports.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			anonymousID := strings.TrimSpace(c.Request().Header.Get(AnonymousIDHeader))
			if anonymousID == "" {
				anonymousID = strings.TrimSpace(c.QueryParam("anonymous_id"))
			}
			if anonymousID == "" {
				return errMissingAnonymousID
			}

			user, err := users.GetByAnonymousID(c.Request().Context(), anonymousID)
			if err != nil {
				return err
			}

			SetUser(c, user)
			return next(c)
		}
	}
}
