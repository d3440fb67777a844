package models

import "time"

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	StatusNotStarted MatchStatus = "not_started"
	StatusLive       MatchStatus = "live"
	StatusCompleted  MatchStatus = "completed"
)

// ExtraType tags a delivery that was not a plain ball off the bat
type ExtraType string

const (
	ExtraNone   ExtraType = ""
	ExtraWide   ExtraType = "wide"
	ExtraNoBall ExtraType = "no-ball"
	ExtraBye    ExtraType = "bye"
	ExtraLegBye ExtraType = "leg-bye"
)

// BallsPerOver is the number of legal deliveries in an over
const BallsPerOver = 6

// DefaultLogo is used for teams and players created without an image
const DefaultLogo = "/public/assets/logo.png"

// IsLegal reports whether a delivery with this tag counts toward the over.
// Wides and no-balls are re-bowled; every other tag is a legal delivery.
func (e ExtraType) IsLegal() bool {
	return e != ExtraWide && e != ExtraNoBall
}

// Team is a roster entry for one side
type Team struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Short string `json:"short" yaml:"short"`
	Logo  string `json:"logo" yaml:"logo"`
}

// PlayerStats holds cumulative career numbers for a player
type PlayerStats struct {
	Runs    int `json:"runs" yaml:"runs"`
	Balls   int `json:"balls" yaml:"balls"`
	Wickets int `json:"wickets" yaml:"wickets"`
}

// Player is a roster entry. TeamID is a weak reference and may be nil.
type Player struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Role   string      `json:"role" yaml:"role"`
	Jersey string      `json:"jersey" yaml:"jersey"`
	TeamID *string     `json:"teamId" yaml:"teamId"`
	Photo  string      `json:"photo" yaml:"photo"`
	Stats  PlayerStats `json:"stats" yaml:"stats"`
}

// BallEvent is one recorded delivery. Immutable once appended to an innings.
type BallEvent struct {
	ID       string    `json:"id"`
	Runs     int       `json:"runs"`
	IsWicket bool      `json:"isWicket"`
	Extra    ExtraType `json:"extra"`
	Time     time.Time `json:"time"`
}

// Innings is the batting side's running aggregate plus its ball log
type Innings struct {
	BattingTeam *string     `json:"battingTeam"`
	Runs        int         `json:"runs"`
	Wickets     int         `json:"wickets"`
	Overs       int         `json:"overs"`
	Balls       int         `json:"balls"`
	BallsLog    []BallEvent `json:"ballsLog"`
}

// Match is a fixture between two teams
type Match struct {
	ID      string      `json:"id"`
	TeamAID string      `json:"teamAId"`
	TeamBID string      `json:"teamBId"`
	Overs   int         `json:"overs"`
	Innings Innings     `json:"innings"`
	Status  MatchStatus `json:"status"`
}

// State is the whole persisted application blob
type State struct {
	Teams        []Team   `json:"teams"`
	Players      []Player `json:"players"`
	Matches      []*Match `json:"matches"`
	CurrentMatch *Match   `json:"currentMatch"`
}

// NewInnings returns a zeroed innings for the given batting side
func NewInnings(battingTeam *string) Innings {
	return Innings{
		BattingTeam: battingTeam,
		BallsLog:    []BallEvent{},
	}
}

// NewState returns an empty state with non-nil collections
func NewState() *State {
	return &State{
		Teams:   []Team{},
		Players: []Player{},
		Matches: []*Match{},
	}
}

// Normalize fills nil collections and re-links CurrentMatch to its entry in
// Matches so that both views share one object after decoding.
func (s *State) Normalize() {
	if s.Teams == nil {
		s.Teams = []Team{}
	}
	if s.Players == nil {
		s.Players = []Player{}
	}
	if s.Matches == nil {
		s.Matches = []*Match{}
	}
	for _, m := range s.Matches {
		if m != nil && m.Innings.BallsLog == nil {
			m.Innings.BallsLog = []BallEvent{}
		}
	}
	if s.CurrentMatch == nil {
		return
	}
	if s.CurrentMatch.Innings.BallsLog == nil {
		s.CurrentMatch.Innings.BallsLog = []BallEvent{}
	}
	for i, m := range s.Matches {
		if m != nil && m.ID == s.CurrentMatch.ID {
			s.Matches[i] = s.CurrentMatch
			return
		}
	}
	s.Matches = append(s.Matches, s.CurrentMatch)
}

// FindTeam returns the team with the given id, or nil
func (s *State) FindTeam(id string) *Team {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}

// FindPlayer returns the player with the given id, or nil
func (s *State) FindPlayer(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the match
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Innings.BattingTeam = cloneString(m.Innings.BattingTeam)
	c.Innings.BallsLog = make([]BallEvent, len(m.Innings.BallsLog))
	copy(c.Innings.BallsLog, m.Innings.BallsLog)
	return &c
}

// Clone returns a deep copy of the state. The copy's CurrentMatch shares
// identity with its own Matches entry, as in the source state.
func (s *State) Clone() *State {
	c := &State{
		Teams:   make([]Team, len(s.Teams)),
		Players: make([]Player, len(s.Players)),
		Matches: make([]*Match, 0, len(s.Matches)),
	}
	copy(c.Teams, s.Teams)
	for i, p := range s.Players {
		p.TeamID = cloneString(p.TeamID)
		c.Players[i] = p
	}
	for _, m := range s.Matches {
		mc := m.Clone()
		c.Matches = append(c.Matches, mc)
		if s.CurrentMatch != nil && m == s.CurrentMatch {
			c.CurrentMatch = mc
		}
	}
	if s.CurrentMatch != nil && c.CurrentMatch == nil {
		c.CurrentMatch = s.CurrentMatch.Clone()
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
