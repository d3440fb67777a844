package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Store loads and persists the whole application state as one unit.
// Load returns an empty state when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
	Close() error
}

// New builds the store selected by cfg.Backend. redisClient is only used by
// the redis backend and may be nil otherwise.
func New(cfg config.StoreConfig, redisClient *redis.Client) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Path), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisStore(redisClient, cfg.StateKey), nil
	case config.BackendPostgres:
		st, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendSQLite:
		st, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// decodeState parses a persisted blob. An empty blob is an empty state.
func decodeState(data []byte) (*models.State, error) {
	if len(data) == 0 {
		return models.NewState(), nil
	}

	var state models.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

func encodeState(state *models.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshaling state: %w", err)
	}
	return data, nil
}
