package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/infrastructure/identity/local"
)

var errCredentialNotFound = domain.Wrap(domain.ErrNotFound, nil, "credential not found")

// CredentialRepository stores local identity provider credentials.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(credentialsCollection)}
}

type mongoCredential struct {
	ID             string         `bson:"_id"`
	Email          string         `bson:"email,omitempty"`
	PasswordHash   string         `bson:"password_hash,omitempty"`
	IsAnonymous    bool           `bson:"is_anonymous"`
	EmailConfirmed bool           `bson:"email_confirmed"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	CreatedAt      int64          `bson:"created_at"`
	UpdatedAt      int64          `bson:"updated_at"`
}

func (r *CredentialRepository) Create(ctx context.Context, c *local.Credential) error {
	doc := mongoCredential{
		ID:             c.ID.String(),
		Email:          c.Email,
		PasswordHash:   c.PasswordHash,
		IsAnonymous:    c.IsAnonymous,
		EmailConfirmed: c.EmailConfirmed,
		Metadata:       c.Metadata,
		CreatedAt:      c.CreatedAt.Unix(),
		UpdatedAt:      c.UpdatedAt.Unix(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*local.Credential, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*local.Credential, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *CredentialRepository) Upgrade(ctx context.Context, id uuid.UUID, email, passwordHash string, metadata map[string]any) (*local.Credential, error) {
	set := bson.M{
		"email":           email,
		"password_hash":   passwordHash,
		"is_anonymous":    false,
		"email_confirmed": true,
		"updated_at":      time.Now().Unix(),
	}
	for k, v := range metadata {
		set["metadata."+k] = v
	}

	var mc mongoCredential
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errCredentialNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("upgrade credential: %w", err)
	}
	return toCredential(mc)
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.M) (*local.Credential, error) {
	var mc mongoCredential
	if err := r.coll.FindOne(ctx, filter).Decode(&mc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errCredentialNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return toCredential(mc)
}

func toCredential(mc mongoCredential) (*local.Credential, error) {
	id, err := uuid.Parse(mc.ID)
	if err != nil {
		return nil, fmt.Errorf("credential id: %w", err)
	}
	return &local.Credential{
		ID:             id,
		Email:          mc.Email,
		PasswordHash:   mc.PasswordHash,
		IsAnonymous:    mc.IsAnonymous,
		EmailConfirmed: mc.EmailConfirmed,
		Metadata:       mc.Metadata,
		CreatedAt:      unixToTime(mc.CreatedAt),
		UpdatedAt:      unixToTime(mc.UpdatedAt),
	}, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
