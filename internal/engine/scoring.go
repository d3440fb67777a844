package engine

import (
	"context"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/sirupsen/logrus"
)

// BallInput is one delivery as reported by the scorer
type BallInput struct {
	Runs     int
	IsWicket bool
	Extra    models.ExtraType
}

// RecordBall appends a delivery to the live innings and updates its
// aggregates. Overs and wicket limits are not enforced: the innings stays
// open until the scorer starts another one.
func (e *Engine) RecordBall(ctx context.Context, in BallInput) (*models.Match, *models.BallEvent, error) {
	if in.Runs < 0 {
		return nil, nil, invalidInput("runs must not be negative").WithDetail("runs", in.Runs)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	match := e.state.CurrentMatch
	if match == nil || match.Status != models.StatusLive {
		return nil, nil, newError(ErrCodeMatchNotLive, "no live match")
	}

	ball := models.BallEvent{
		ID:       e.newID(),
		Runs:     in.Runs,
		IsWicket: in.IsWicket,
		Extra:    in.Extra,
		Time:     e.now().UTC(),
	}
	applyBall(&match.Innings, ball)

	last := ball
	e.commit(ctx, models.Event{Type: models.EventBall, Match: match.Clone(), LastBall: &last})

	e.log.WithFields(logrus.Fields{
		"match_id": match.ID,
		"runs":     ball.Runs,
		"wicket":   ball.IsWicket,
		"extra":    ball.Extra,
		"score":    scoreLine(match.Innings),
	}).Debug("ball recorded")

	return match.Clone(), &ball, nil
}

// applyBall updates innings aggregates for one delivery and appends it to
// the log. Wides and no-balls score runs+1 and are re-bowled; legal
// deliveries advance the ball counter, rolling into a new over at six.
func applyBall(inn *models.Innings, ball models.BallEvent) {
	if ball.Extra.IsLegal() {
		inn.Runs += ball.Runs
		if ball.IsWicket {
			inn.Wickets++
		}
		inn.Balls++
		if inn.Balls >= models.BallsPerOver {
			inn.Overs++
			inn.Balls = 0
		}
	} else {
		inn.Runs += ball.Runs + 1
	}
	inn.BallsLog = append(inn.BallsLog, ball)
}

// scoreLine formats an innings as runs/wickets (overs.balls)
func scoreLine(inn models.Innings) string {
	return fmt.Sprintf("%d/%d (%d.%d)", inn.Runs, inn.Wickets, inn.Overs, inn.Balls)
}
