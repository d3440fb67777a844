package testutil

import (
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
)

// MockTeam creates a test roster team
func MockTeam(id, name string) models.Team {
	return models.Team{
		ID:    id,
		Name:  name,
		Short: name[:min(3, len(name))],
		Logo:  models.DefaultLogo,
	}
}

// MockState creates a state with two teams and no match
func MockState() *models.State {
	state := models.NewState()
	state.Teams = append(state.Teams,
		MockTeam("team-a", "Falcons"),
		MockTeam("team-b", "Hawks"),
	)
	return state
}

// MockMatch creates a live match between the two MockState teams
func MockMatch(id string) *models.Match {
	batting := "team-a"
	return &models.Match{
		ID:      id,
		TeamAID: "team-a",
		TeamBID: "team-b",
		Overs:   20,
		Innings: models.NewInnings(&batting),
		Status:  models.StatusLive,
	}
}

// MockBallEvent creates a test delivery
func MockBallEvent(id string, runs int, extra models.ExtraType) models.BallEvent {
	return models.BallEvent{
		ID:    id,
		Runs:  runs,
		Extra: extra,
		Time:  time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

// MockBallUpdate creates the ball event for the first delivery of a match
func MockBallUpdate(matchID string, runs int) models.Event {
	match := MockMatch(matchID)
	ball := MockBallEvent("ball-1", runs, models.ExtraNone)
	match.Innings.Runs = runs
	match.Innings.Balls = 1
	match.Innings.BallsLog = append(match.Innings.BallsLog, ball)
	return models.Event{
		Type:     models.EventBall,
		Match:    match,
		LastBall: &ball,
	}
}

// MockClientMessage creates a test client message
func MockClientMessage(msgType string, payload map[string]interface{}) models.ClientMessage {
	return models.ClientMessage{
		Type:    msgType,
		Payload: payload,
	}
}

// MustFrame serializes an event or panics
func MustFrame(event models.Event) []byte {
	frame, err := event.Frame()
	if err != nil {
		panic(err)
	}
	return frame
}
