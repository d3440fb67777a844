package store

import (
	"context"
	"sync"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
)

// MemoryStore keeps the last saved blob in process memory
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the last saved blob, or returns an empty state
func (s *MemoryStore) Load(ctx context.Context) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeState(s.data)
}

// Save replaces the stored blob
func (s *MemoryStore) Save(ctx context.Context, state *models.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
