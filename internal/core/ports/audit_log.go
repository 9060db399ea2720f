package ports

import (
	"context"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// AuditLog records identity lifecycle transitions.
type AuditLog interface {
	Append(ctx context.Context, event domain.IdentityEvent) error
}
