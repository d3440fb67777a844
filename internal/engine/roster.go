package engine

import (
	"context"
	"strings"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/sirupsen/logrus"
)

// TeamInput describes a team to add. ID is generated when empty.
type TeamInput struct {
	ID    string
	Name  string
	Short string
	Logo  string
}

// PlayerInput describes a player to add. ID is generated when empty.
// TeamID is stored as given; it is a weak reference and not validated.
type PlayerInput struct {
	ID     string
	Name   string
	Role   string
	Jersey string
	TeamID string
	Photo  string
	Stats  models.PlayerStats
}

// AddTeam appends a team to the roster. Roster changes are persisted but
// not broadcast.
func (e *Engine) AddTeam(ctx context.Context, in TeamInput) (models.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = e.newID()
	} else if e.state.FindTeam(id) != nil {
		return models.Team{}, invalidInput("team id already exists").WithDetail("team_id", id)
	}

	team := models.Team{
		ID:    id,
		Name:  defaultString(in.Name, "Team "+id),
		Short: in.Short,
		Logo:  defaultString(in.Logo, models.DefaultLogo),
	}
	e.state.Teams = append(e.state.Teams, team)
	e.persist(ctx, "add_team")

	e.log.WithFields(logrus.Fields{"team_id": team.ID, "name": team.Name}).Info("team added")
	return team, nil
}

// AddPlayer appends a player to the roster
func (e *Engine) AddPlayer(ctx context.Context, in PlayerInput) (models.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = e.newID()
	} else if e.state.FindPlayer(id) != nil {
		return models.Player{}, invalidInput("player id already exists").WithDetail("player_id", id)
	}

	var teamID *string
	if in.TeamID != "" {
		t := in.TeamID
		teamID = &t
	}

	player := models.Player{
		ID:     id,
		Name:   defaultString(in.Name, "Player "+id),
		Role:   in.Role,
		Jersey: in.Jersey,
		TeamID: teamID,
		Photo:  defaultString(in.Photo, models.DefaultLogo),
		Stats:  in.Stats,
	}
	e.state.Players = append(e.state.Players, player)
	e.persist(ctx, "add_player")

	e.log.WithFields(logrus.Fields{"player_id": player.ID, "name": player.Name}).Info("player added")

	player.TeamID = cloneString(teamID)
	return player, nil
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
