package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// Batch size for reading messages
	batchSize = 100

	// Block duration when waiting for new messages
	blockDuration = 1 * time.Second

	// Pause after a failed read
	retryDelay = 1 * time.Second
)

// StreamReader is the subset of the Redis client used by the consumer
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Broadcaster receives relayed frames
type Broadcaster interface {
	PublishFrame(frame []byte)
}

// StreamConsumer reads match events mirrored by a primary instance and hands
// them to the local hub
type StreamConsumer struct {
	redis        StreamReader
	hub          Broadcaster
	streamConfig config.StreamConfig
	log          *logrus.Entry
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(redisClient StreamReader, h Broadcaster, streamConfig config.StreamConfig) *StreamConsumer {
	return &StreamConsumer{
		redis:        redisClient,
		hub:          h,
		streamConfig: streamConfig,
		log: logging.NewLogger("relay").WithFields(logrus.Fields{
			"stream":   streamConfig.Name,
			"group":    streamConfig.ConsumerGroup,
			"consumer": streamConfig.ConsumerID,
		}),
	}
}

// Start consumes the stream until ctx is cancelled
func (sc *StreamConsumer) Start(ctx context.Context) error {
	sc.log.Info("stream consumer started")

	// The group is per replica so each one sees the whole feed; new entries
	// only, matching the no-replay contract of live viewers
	if err := sc.createConsumerGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			sc.log.Info("stream consumer stopped")
			return nil
		default:
		}

		streams, err := sc.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    sc.streamConfig.ConsumerGroup,
			Consumer: sc.streamConfig.ConsumerID,
			Streams:  []string{sc.streamConfig.Name, ">"},
			Count:    batchSize,
			Block:    blockDuration,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				// No new messages, or shutting down
				continue
			}
			sc.log.WithError(err).Warn("stream read error")
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				sc.processMessage(ctx, message)
			}
		}
	}
}

// createConsumerGroup creates the consumer group, tolerating an existing one
func (sc *StreamConsumer) createConsumerGroup(ctx context.Context) error {
	err := sc.redis.XGroupCreateMkStream(ctx, sc.streamConfig.Name, sc.streamConfig.ConsumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		sc.log.WithError(err).Error("failed to create consumer group")
		return err
	}
	return nil
}

// processMessage relays one stream entry. Malformed entries are acked and
// skipped so they are not redelivered.
func (sc *StreamConsumer) processMessage(ctx context.Context, msg redis.XMessage) {
	defer sc.ackMessage(ctx, msg.ID)

	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		sc.log.WithField("message_id", msg.ID).Warn("invalid message format")
		return
	}

	var event models.Event
	if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
		sc.log.WithError(err).WithField("message_id", msg.ID).Warn("failed to parse event")
		return
	}
	if event.Type == "" {
		sc.log.WithField("message_id", msg.ID).Warn("event without type")
		return
	}

	sc.log.WithFields(logrus.Fields{
		"type":     event.Type,
		"match_id": event.MatchID(),
	}).Debug("relaying event")

	sc.hub.PublishFrame([]byte(dataStr))
}

// ackMessage acknowledges a message in the stream
func (sc *StreamConsumer) ackMessage(ctx context.Context, messageID string) {
	err := sc.redis.XAck(context.WithoutCancel(ctx), sc.streamConfig.Name, sc.streamConfig.ConsumerGroup, messageID).Err()
	if err != nil {
		sc.log.WithError(err).WithField("message_id", messageID).Warn("failed to ack message")
	}
}
