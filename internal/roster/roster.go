// Package roster loads a YAML team and player list and seeds it into the engine.
package roster

import (
	"context"
	"fmt"
	"os"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/engine"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"gopkg.in/yaml.v3"
)

// Seed is the on-disk roster file
type Seed struct {
	Teams   []models.Team   `yaml:"teams"`
	Players []models.Player `yaml:"players"`
}

// Target is the engine surface used for seeding
type Target interface {
	Snapshot() *models.State
	AddTeam(ctx context.Context, in engine.TeamInput) (models.Team, error)
	AddPlayer(ctx context.Context, in engine.PlayerInput) (models.Player, error)
}

// Load reads and parses a roster file
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return Parse(data)
}

// Parse decodes roster YAML. Every entry must carry an id so that reseeding
// is idempotent.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	for i, t := range seed.Teams {
		if t.ID == "" {
			return nil, fmt.Errorf("roster team %d has no id", i)
		}
	}
	for i, p := range seed.Players {
		if p.ID == "" {
			return nil, fmt.Errorf("roster player %d has no id", i)
		}
	}
	return &seed, nil
}

// Apply adds every team and player whose id is not yet in the roster.
// It returns the number of entries added.
func (s *Seed) Apply(ctx context.Context, target Target) (int, error) {
	log := logging.NewLogger("roster")
	state := target.Snapshot()
	added := 0

	for _, t := range s.Teams {
		if state.FindTeam(t.ID) != nil {
			continue
		}
		if _, err := target.AddTeam(ctx, engine.TeamInput{
			ID:    t.ID,
			Name:  t.Name,
			Short: t.Short,
			Logo:  t.Logo,
		}); err != nil {
			return added, fmt.Errorf("failed to add team %s: %w", t.ID, err)
		}
		added++
	}

	for _, p := range s.Players {
		if state.FindPlayer(p.ID) != nil {
			continue
		}
		in := engine.PlayerInput{
			ID:     p.ID,
			Name:   p.Name,
			Role:   p.Role,
			Jersey: p.Jersey,
			Photo:  p.Photo,
			Stats:  p.Stats,
		}
		if p.TeamID != nil {
			in.TeamID = *p.TeamID
		}
		if _, err := target.AddPlayer(ctx, in); err != nil {
			return added, fmt.Errorf("failed to add player %s: %w", p.ID, err)
		}
		added++
	}

	log.WithField("added", added).Info("roster seeded")
	return added, nil
}
