package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// recordTransition appends to the audit trail. Failures are logged and
// never fail the caller.
func recordTransition(ctx context.Context, audit ports.AuditLog, log zerolog.Logger, event domain.IdentityEvent) {
	if audit == nil {
		return
	}
	if err := audit.Append(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("user_id", event.UserID.String()).
			Str("transition", event.Transition).
			Msg("failed to append identity event")
	}
}

func actorRef(u *domain.User) *uuid.UUID {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}
