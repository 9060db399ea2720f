package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// AuditLog implements ports.AuditLog using MongoDB.
type AuditLog struct {
	db *mongo.Database
}

// NewAuditLog creates a new AuditLog.
func NewAuditLog(db *mongo.Database) ports.AuditLog {
	return &AuditLog{db: db}
}

// Append persists a lifecycle transition to the identity_events collection.
func (r *AuditLog) Append(ctx context.Context, event domain.IdentityEvent) error {
	doc := bson.M{
		"user_id":     event.UserID.String(),
		"transition":  event.Transition,
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.From != "" {
		doc["from"] = string(event.From)
	}
	if event.To != "" {
		doc["to"] = string(event.To)
	}
	if event.ActorID != nil {
		doc["actor_id"] = event.ActorID.String()
	}
	if len(event.Details) > 0 {
		doc["details"] = event.Details
	}

	_, err := r.db.Collection(eventsCollection).InsertOne(ctx, doc)
	return err
}
