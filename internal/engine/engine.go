package engine

import (
	"context"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/store"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Default overs limit when a match is created without one
const DefaultOvers = 20

// Time allowed for a single state save
const saveTimeout = 5 * time.Second

// Publisher receives every committed event. Publish must not block.
type Publisher interface {
	Publish(event models.Event)
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock used to stamp deliveries
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how entity ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// Engine is the single owner of the application state. Every mutation runs
// validate, mutate, persist and publish inside one critical section, so
// concurrent writers and readers never observe a half-applied transition.
type Engine struct {
	mu    sync.RWMutex
	state *models.State

	store      store.Store
	publishers []Publisher

	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

// New creates an engine with an empty state. Call Load to restore the
// persisted state before serving requests.
func New(st store.Store, publishers []Publisher, opts ...Option) *Engine {
	e := &Engine{
		state:      models.NewState(),
		store:      st,
		publishers: publishers,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        logging.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the in-memory state with the persisted one. A failed load
// is logged and leaves the engine on an empty state.
func (e *Engine) Load(ctx context.Context) {
	state, err := e.store.Load(ctx)
	if err != nil {
		e.log.WithError(err).Error("failed to load state, starting empty")
		state = models.NewState()
	}
	state.Normalize()

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()

	fields := logrus.Fields{
		"teams":   len(state.Teams),
		"players": len(state.Players),
		"matches": len(state.Matches),
	}
	if state.CurrentMatch != nil {
		fields["match_id"] = state.CurrentMatch.ID
		fields["status"] = state.CurrentMatch.Status
	}
	e.log.WithFields(fields).Info("state loaded")
}

// Snapshot returns a deep copy of the full state
func (e *Engine) Snapshot() *models.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// CurrentMatch returns a copy of the current match, or nil
func (e *Engine) CurrentMatch() *models.Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.CurrentMatch.Clone()
}

// CreateMatch starts a new fixture between two roster teams and makes it the
// current match, discarding the previous current match pointer.
func (e *Engine) CreateMatch(ctx context.Context, teamAID, teamBID string, overs int) (*models.Match, error) {
	if overs < 0 {
		return nil, invalidInput("overs must not be negative").WithDetail("overs", overs)
	}
	if overs == 0 {
		overs = DefaultOvers
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.FindTeam(teamAID) == nil {
		return nil, invalidReference("team", teamAID)
	}
	if e.state.FindTeam(teamBID) == nil {
		return nil, invalidReference("team", teamBID)
	}

	match := &models.Match{
		ID:      e.newID(),
		TeamAID: teamAID,
		TeamBID: teamBID,
		Overs:   overs,
		Innings: models.NewInnings(nil),
		Status:  models.StatusNotStarted,
	}
	e.state.Matches = append(e.state.Matches, match)
	e.state.CurrentMatch = match

	e.commit(ctx, models.Event{Type: models.EventMatchCreated, Match: match.Clone()})

	e.log.WithFields(logrus.Fields{
		"match_id": match.ID,
		"team_a":   teamAID,
		"team_b":   teamBID,
		"overs":    overs,
	}).Info("match created")

	return match.Clone(), nil
}

// StartInnings resets the current match's innings for the batting side and
// marks the match live. The batting team id is not checked against the roster.
func (e *Engine) StartInnings(ctx context.Context, battingTeamID string) (*models.Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	match := e.state.CurrentMatch
	if match == nil {
		return nil, newError(ErrCodeNoActiveMatch, "no current match")
	}

	var batting *string
	if battingTeamID != "" {
		batting = &battingTeamID
	}
	match.Innings = models.NewInnings(batting)
	match.Status = models.StatusLive

	e.commit(ctx, models.Event{Type: models.EventStartInnings, Match: match.Clone()})

	e.log.WithFields(logrus.Fields{
		"match_id":     match.ID,
		"batting_team": battingTeamID,
	}).Info("innings started")

	return match.Clone(), nil
}

// ResetMatch clears the current match pointer. The match stays in history.
func (e *Engine) ResetMatch(ctx context.Context) (*models.Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	match := e.state.CurrentMatch
	if match == nil {
		return nil, newError(ErrCodeNoActiveMatch, "no current match")
	}
	e.state.CurrentMatch = nil

	e.commit(ctx, models.Event{Type: models.EventMatchReset, Match: match.Clone()})

	e.log.WithField("match_id", match.ID).Info("current match cleared")
	return match.Clone(), nil
}

// commit persists the state and hands the event to every publisher.
// Must be called with e.mu held. A failed save is logged and absorbed: the
// in-memory change and the broadcast stand.
func (e *Engine) commit(ctx context.Context, event models.Event) {
	e.persist(ctx, string(event.Type))

	for _, p := range e.publishers {
		p.Publish(event)
	}
}

// persist saves the state. Must be called with e.mu held.
func (e *Engine) persist(ctx context.Context, op string) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := e.store.Save(saveCtx, e.state); err != nil {
		failure := &Error{
			Code:    ErrCodePersistenceFailure,
			Message: "state save failed, in-memory state kept",
			Cause:   err,
		}
		e.log.WithError(failure).WithField("op", op).Error("persistence failure")
	}
}
