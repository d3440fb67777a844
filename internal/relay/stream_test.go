package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/testutil"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu       sync.Mutex
	groupErr error
	batches  [][]redis.XMessage
	acked    []string
}

func (f *fakeReader) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", f.groupErr)
}

func (f *fakeReader) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		time.Sleep(5 * time.Millisecond)
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: batch}}, nil)
}

func (f *fakeReader) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeReader) Acked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *frameRecorder) PublishFrame(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		Enabled:       true,
		Name:          "match.events",
		ConsumerGroup: "livescore-relay",
		ConsumerID:    "relay-test",
	}
}

func entry(id string, event models.Event) redis.XMessage {
	return redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			"data":     string(testutil.MustFrame(event)),
			"type":     string(event.Type),
			"match_id": event.MatchID(),
		},
	}
}

func TestStreamConsumer_RelaysAndAcks(t *testing.T) {
	reader := &fakeReader{
		batches: [][]redis.XMessage{
			{
				entry("1-0", testutil.MockBallUpdate("match-1", 1)),
				entry("2-0", testutil.MockBallUpdate("match-1", 6)),
			},
		},
	}
	hub := &frameRecorder{}
	sc := NewStreamConsumer(reader, hub, testStreamConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Acked()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	frames := hub.Frames()
	require.Len(t, frames, 2)
	var evt models.Event
	require.NoError(t, json.Unmarshal(frames[1], &evt))
	assert.Equal(t, 6, evt.LastBall.Runs)
	assert.Equal(t, []string{"1-0", "2-0"}, reader.Acked())
}

func TestStreamConsumer_SkipsMalformedEntries(t *testing.T) {
	reader := &fakeReader{}
	hub := &frameRecorder{}
	sc := NewStreamConsumer(reader, hub, testStreamConfig())

	tests := []struct {
		name string
		msg  redis.XMessage
	}{
		{name: "missing data", msg: redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": "ball"}}},
		{name: "invalid json", msg: redis.XMessage{ID: "2-0", Values: map[string]interface{}{"data": "{not json"}}},
		{name: "no event type", msg: redis.XMessage{ID: "3-0", Values: map[string]interface{}{"data": `{"match":null}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc.processMessage(context.Background(), tt.msg)
		})
	}

	assert.Empty(t, hub.Frames())
	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, reader.Acked())
}

func TestStreamConsumer_ExistingGroupIsTolerated(t *testing.T) {
	reader := &fakeReader{groupErr: errors.New("BUSYGROUP Consumer Group name already exists")}
	sc := NewStreamConsumer(reader, &frameRecorder{}, testStreamConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sc.Start(ctx))
}

func TestStreamConsumer_GroupCreateFailure(t *testing.T) {
	reader := &fakeReader{groupErr: errors.New("NOAUTH Authentication required")}
	sc := NewStreamConsumer(reader, &frameRecorder{}, testStreamConfig())

	assert.Error(t, sc.Start(context.Background()))
}

// groupStream delivers every entry once per consumer group, as Redis does
type groupStream struct {
	mu      sync.Mutex
	entries []redis.XMessage
	offsets map[string]int
}

func newGroupStream() *groupStream {
	return &groupStream{offsets: make(map[string]int)}
}

func (g *groupStream) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.offsets[group]; ok {
		return redis.NewStatusResult("", errors.New("BUSYGROUP Consumer Group name already exists"))
	}
	g.offsets[group] = len(g.entries)
	return redis.NewStatusResult("OK", nil)
}

func (g *groupStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	g.mu.Lock()
	next := g.offsets[a.Group]
	if next >= len(g.entries) {
		g.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	batch := append([]redis.XMessage(nil), g.entries[next:]...)
	g.offsets[a.Group] = len(g.entries)
	g.mu.Unlock()

	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: batch}}, nil)
}

func (g *groupStream) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (g *groupStream) Add(msg redis.XMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, msg)
}

func (g *groupStream) Groups() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.offsets)
}

func TestStreamConsumer_EveryReplicaRelaysEveryEntry(t *testing.T) {
	stream := newGroupStream()

	replicas := make([]*frameRecorder, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, id := range []string{"relay-a", "relay-b"} {
		cfg := testStreamConfig()
		cfg.ConsumerID = id
		cfg.ConsumerGroup = "livescore-relay-" + id

		replicas[i] = &frameRecorder{}
		sc := NewStreamConsumer(stream, replicas[i], cfg)
		go sc.Start(ctx)
	}

	require.Eventually(t, func() bool { return stream.Groups() == 2 }, time.Second, 5*time.Millisecond)

	for i, runs := range []int{1, 4, 6} {
		stream.Add(entry(fmt.Sprintf("%d-0", i+1), testutil.MockBallUpdate("match-1", runs)))
	}

	for _, r := range replicas {
		require.Eventually(t, func() bool { return len(r.Frames()) == 3 }, time.Second, 5*time.Millisecond)

		var got []int
		for _, frame := range r.Frames() {
			var evt models.Event
			require.NoError(t, json.Unmarshal(frame, &evt))
			got = append(got, evt.LastBall.Runs)
		}
		assert.Equal(t, []int{1, 4, 6}, got)
	}
}
