package ports

import "github.com/getbazar/bazar-api/internal/core/domain"

// PolicyDecider answers whether any of roles may perform action on resource.
type PolicyDecider interface {
	Decide(roles []domain.RoleName, action, resource string) bool
}
