package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *models.State {
	batting := "team-a"
	match := &models.Match{
		ID:      "match-1",
		TeamAID: "team-a",
		TeamBID: "team-b",
		Overs:   20,
		Status:  models.StatusLive,
		Innings: models.Innings{
			BattingTeam: &batting,
			Runs:        5,
			Balls:       1,
			BallsLog: []models.BallEvent{
				{ID: "b1", Runs: 4, Time: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
				{ID: "b2", Runs: 0, Extra: models.ExtraWide, Time: time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)},
			},
		},
	}

	state := models.NewState()
	state.Teams = []models.Team{
		{ID: "team-a", Name: "Falcons", Short: "FAL", Logo: models.DefaultLogo},
		{ID: "team-b", Name: "Hawks", Short: "HAW", Logo: models.DefaultLogo},
	}
	state.Players = []models.Player{{ID: "p1", Name: "Asha", Role: "batter", TeamID: &batting}}
	state.Matches = []*models.Match{match}
	state.CurrentMatch = match
	return state
}

// assertRoundTrip saves a sample state and checks it loads back intact
func assertRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Teams)
	assert.Nil(t, empty.CurrentMatch)

	require.NoError(t, s.Save(ctx, sampleState()))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Teams, 2)
	require.Len(t, loaded.Matches, 1)
	require.NotNil(t, loaded.CurrentMatch)

	assert.Equal(t, "Falcons", loaded.Teams[0].Name)
	assert.Equal(t, 5, loaded.CurrentMatch.Innings.Runs)
	assert.Len(t, loaded.CurrentMatch.Innings.BallsLog, 2)
	assert.Equal(t, models.ExtraWide, loaded.CurrentMatch.Innings.BallsLog[1].Extra)
	assert.Same(t, loaded.Matches[0], loaded.CurrentMatch, "current match should be re-linked to its history entry")
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "db.json"))
	assertRoundTrip(t, s)
}

func TestFileStore_EmptyFileIsEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	state, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, state.Matches)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	assertRoundTrip(t, s)
	assert.Equal(t, 1, s.Saves())
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "livescore.db"))
	require.NoError(t, err)
	defer s.Close()

	assertRoundTrip(t, s)

	// A second save overwrites the single row
	state := sampleState()
	state.CurrentMatch = nil
	require.NoError(t, s.Save(context.Background(), state))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded.CurrentMatch)
	assert.Len(t, loaded.Matches, 1)
}

func TestSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livescore.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleState()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Teams, 2)
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "db.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(config.StoreConfig{Backend: config.BackendRedis}, nil)
	assert.Error(t, err, "redis backend without a client should fail")

	_, err = New(config.StoreConfig{Backend: "mongo"}, nil)
	assert.Error(t, err)
}

func TestView_ReadsThroughStore(t *testing.T) {
	st := NewMemoryStore()
	view := NewView(st)

	empty := view.Snapshot()
	assert.Empty(t, empty.Teams)
	assert.Nil(t, empty.CurrentMatch)

	require.NoError(t, st.Save(context.Background(), sampleState()))

	state := view.Snapshot()
	require.NotNil(t, state.CurrentMatch)
	assert.Len(t, state.Teams, 2)
}
