package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// RefreshTokenStore keeps local provider refresh tokens.
// Key format: refresh:<token>, value is the identity id.
type RefreshTokenStore struct {
	client *redis.Client
}

func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func (s *RefreshTokenStore) Save(ctx context.Context, token string, id uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(token), id.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Consume removes the token atomically so it can be used once.
func (s *RefreshTokenStore) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := s.client.GetDel(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, domain.ErrInvalidRefreshToken
		}
		return uuid.Nil, fmt.Errorf("consume refresh token: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidRefreshToken
	}
	return id, nil
}

func (s *RefreshTokenStore) key(token string) string {
	return "refresh:" + token
}
