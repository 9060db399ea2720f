package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

const (
	identityKey = "identity"
	userKey     = "user"
	rolesKey    = "roles"
)

// Identity returns the provider identity stored by Authenticate.
func Identity(c echo.Context) *domain.ProviderIdentity {
	ident, _ := c.Get(identityKey).(*domain.ProviderIdentity)
	return ident
}

// CurrentUser returns the local user stored by ResolveUser or ResolveAnonymous.
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(userKey).(*domain.User)
	return u
}

// Roles returns the roles loaded by Authorize.
func Roles(c echo.Context) []domain.RoleName {
	roles, _ := c.Get(rolesKey).([]domain.RoleName)
	return roles
}

func SetIdentity(c echo.Context, ident *domain.ProviderIdentity) { c.Set(identityKey, ident) }

func SetUser(c echo.Context, u *domain.User) { c.Set(userKey, u) }

func SetRoles(c echo.Context, roles []domain.RoleName) { c.Set(rolesKey, roles) }
