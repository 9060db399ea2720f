package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// Authorizer builds per-route Authorize middleware sharing one decider and
// registry.
type Authorizer struct {
	policies ports.PolicyDecider
	registry ports.UserRegistry
}

func NewAuthorizer(policies ports.PolicyDecider, registry ports.UserRegistry) *Authorizer {
	return &Authorizer{policies: policies, registry: registry}
}

// Require is shorthand for Authorize with the authorizer's decider and registry.
func (a *Authorizer) Require(action, resource string) echo.MiddlewareFunc {
	return Authorize(a.policies, a.registry, action, resource)
}

// Authorize loads the roles of the resolved user and asks the policy engine
// whether they may perform action on resource. It must run after ResolveUser.
func Authorize(policies ports.PolicyDecider, registry ports.UserRegistry, action, resource string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return domain.ErrUserNotRegistered
			}

			roles, err := registry.RolesOf(c.Request().Context(), user.ID)
			if err != nil {
				return err
			}

			if !policies.Decide(roles, action, resource) {
				metrics.PolicyDecisionsTotal.WithLabelValues(resource, action, "deny").Inc()
				metrics.AuthFailuresTotal.WithLabelValues("permission_denied").Inc()
				return domain.Wrap(domain.ErrPermissionDenied, nil, "permission denied: %s on %s", action, resource)
			}
			metrics.PolicyDecisionsTotal.WithLabelValues(resource, action, "allow").Inc()

			SetRoles(c, roles)
			return next(c)
		}
	}
}
