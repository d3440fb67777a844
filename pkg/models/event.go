package models

import "encoding/json"

// EventType discriminates frames pushed to subscribers
type EventType string

const (
	EventMatchCreated EventType = "match_created"
	EventStartInnings EventType = "start_innings"
	EventBall         EventType = "ball"
	EventMatchReset   EventType = "match_reset"
)

// Event is a committed state transition, broadcast to every live subscriber.
// Match is a snapshot taken at commit time and is never mutated afterwards.
type Event struct {
	Type     EventType  `json:"type"`
	Match    *Match     `json:"match"`
	LastBall *BallEvent `json:"lastBall,omitempty"`
}

// MatchID returns the id of the match the event refers to, or ""
func (e Event) MatchID() string {
	if e.Match == nil {
		return ""
	}
	return e.Match.ID
}

// Frame serializes the event into the payload written to subscribers
func (e Event) Frame() ([]byte, error) {
	return json.Marshal(e)
}
