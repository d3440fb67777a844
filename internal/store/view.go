package store

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/sirupsen/logrus"
)

const viewTimeout = 3 * time.Second

// View serves snapshots straight from a store. Relay replicas hold no
// engine, so every read goes to the shared backend.
type View struct {
	store Store
	log   *logrus.Entry
}

// NewView creates a read-through view over st
func NewView(st Store) *View {
	return &View{
		store: st,
		log:   logging.NewLogger("store"),
	}
}

// Snapshot loads the stored state. A failed read yields an empty state.
func (v *View) Snapshot() *models.State {
	ctx, cancel := context.WithTimeout(context.Background(), viewTimeout)
	defer cancel()

	state, err := v.store.Load(ctx)
	if err != nil {
		v.log.WithError(err).Warn("snapshot read failed")
		return models.NewState()
	}
	return state
}
