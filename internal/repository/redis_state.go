package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/authkeep/authkeep/internal/domain"
)

const statePrefix = "authkeep:state:"

var _ StateStore = (*RedisStateStore)(nil)

// RedisStateStore keeps authenticator correlation records in redis, relying
// on key TTLs for expiry cleanup.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) SaveState(ctx context.Context, state domain.AuthenticatorState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(state.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) GetState(ctx context.Context, id uuid.UUID) (*domain.AuthenticatorState, error) {
	payload, err := s.client.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	var state domain.AuthenticatorState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) DeleteState(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, stateKey(id)).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

func stateKey(id uuid.UUID) string {
	return statePrefix + id.String()
}
