package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// Events waiting to be written to Redis
	queueSize = 1024

	// Approximate cap on stream length
	maxStreamLen = 10000

	// Time allowed for one XADD
	writeTimeout = 2 * time.Second
)

// Streamer is the subset of the Redis client used to append to a stream
type Streamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher mirrors committed match events to a Redis stream so relay
// replicas can fan them out. Publish never blocks the engine: events are
// queued and written by Run.
type StreamPublisher struct {
	redis  Streamer
	stream string
	queue  chan models.Event

	published int64
	dropped   int64
	failed    int64

	log *logrus.Entry
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(redisClient Streamer, stream string) *StreamPublisher {
	return &StreamPublisher{
		redis:  redisClient,
		stream: stream,
		queue:  make(chan models.Event, queueSize),
		log:    logging.NewLogger("publisher").WithField("stream", stream),
	}
}

// Publish queues an event for the stream, dropping it if the queue is full
func (p *StreamPublisher) Publish(event models.Event) {
	select {
	case p.queue <- event:
	default:
		atomic.AddInt64(&p.dropped, 1)
		p.log.WithFields(logrus.Fields{
			"type":     event.Type,
			"match_id": event.MatchID(),
		}).Warn("stream queue full, event dropped")
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is left
func (p *StreamPublisher) Run(ctx context.Context) error {
	p.log.Info("stream publisher started")

	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx))
			p.log.WithFields(logrus.Fields(p.Stats())).Info("stream publisher stopped")
			return nil
		case event := <-p.queue:
			p.write(ctx, event)
		}
	}
}

// flush writes events still queued at shutdown
func (p *StreamPublisher) flush(ctx context.Context) {
	for {
		select {
		case event := <-p.queue:
			p.write(ctx, event)
		default:
			return
		}
	}
}

func (p *StreamPublisher) write(ctx context.Context, event models.Event) {
	if err := p.append(ctx, event); err != nil {
		atomic.AddInt64(&p.failed, 1)
		p.log.WithError(err).WithField("match_id", event.MatchID()).Error("failed to mirror event")
		return
	}
	atomic.AddInt64(&p.published, 1)
}

// append writes one event to the stream
func (p *StreamPublisher) append(ctx context.Context, event models.Event) error {
	data, err := event.Frame()
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.redis.XAdd(writeCtx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":     string(data),
			"type":     string(event.Type),
			"match_id": event.MatchID(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("error publishing to stream %s: %w", p.stream, err)
	}
	return nil
}

// Stats returns publish counters
func (p *StreamPublisher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"published": atomic.LoadInt64(&p.published),
		"dropped":   atomic.LoadInt64(&p.dropped),
		"failed":    atomic.LoadInt64(&p.failed),
		"queued":    len(p.queue),
	}
}
