package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/testutil"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamer records XADD calls
type fakeStreamer struct {
	mu    sync.Mutex
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStreamer) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1-0", f.err)
}

func (f *fakeStreamer) Calls() []*redis.XAddArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*redis.XAddArgs(nil), f.calls...)
}

func TestStreamPublisher_WritesEvents(t *testing.T) {
	fake := &fakeStreamer{}
	p := NewStreamPublisher(fake, "match.events")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Publish(testutil.MockBallUpdate("match-1", 4))
	p.Publish(models.Event{Type: models.EventMatchReset, Match: testutil.MockMatch("match-1")})

	require.Eventually(t, func() bool { return len(fake.Calls()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	calls := fake.Calls()
	first := calls[0]
	assert.Equal(t, "match.events", first.Stream)
	assert.EqualValues(t, maxStreamLen, first.MaxLen)
	assert.True(t, first.Approx)

	values := first.Values.(map[string]interface{})
	assert.Equal(t, "ball", values["type"])
	assert.Equal(t, "match-1", values["match_id"])

	var evt models.Event
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &evt))
	require.NotNil(t, evt.LastBall)
	assert.Equal(t, 4, evt.LastBall.Runs)

	assert.Equal(t, "match_reset", calls[1].Values.(map[string]interface{})["type"])
	assert.EqualValues(t, 2, p.Stats()["published"])
}

func TestStreamPublisher_FullQueueDrops(t *testing.T) {
	p := NewStreamPublisher(&fakeStreamer{}, "match.events")

	// Run is not started, so nothing drains the queue
	for i := 0; i < queueSize+3; i++ {
		p.Publish(testutil.MockBallUpdate("match-1", 1))
	}

	stats := p.Stats()
	assert.EqualValues(t, 3, stats["dropped"])
	assert.Equal(t, queueSize, stats["queued"])
}

func TestStreamPublisher_FlushesOnShutdown(t *testing.T) {
	fake := &fakeStreamer{}
	p := NewStreamPublisher(fake, "match.events")

	for i := 0; i < 5; i++ {
		p.Publish(testutil.MockBallUpdate("match-1", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	assert.Len(t, fake.Calls(), 5)
	assert.Equal(t, 0, p.Stats()["queued"])
}

func TestStreamPublisher_WriteErrorIsCounted(t *testing.T) {
	fake := &fakeStreamer{err: errors.New("connection refused")}
	p := NewStreamPublisher(fake, "match.events")

	p.write(context.Background(), testutil.MockBallUpdate("match-1", 1))

	stats := p.Stats()
	assert.EqualValues(t, 1, stats["failed"])
	assert.EqualValues(t, 0, stats["published"])
}
