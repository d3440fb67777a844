package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the state blob under a single Redis key
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store writing to key. The client is owned by the
// caller and is not closed by Close.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
	}
}

// Load reads the blob; a missing key is an empty state
func (s *RedisStore) Load(ctx context.Context) (*models.State, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.NewState(), nil
		}
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return decodeState(data)
}

// Save overwrites the blob with no expiry
func (s *RedisStore) Save(ctx context.Context, state *models.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisStore) Close() error {
	return nil
}
