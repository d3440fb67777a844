package hub

import (
	"context"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/sirupsen/logrus"
)

// Capacity of the inbound frame queue between publishers and the hub loop
const broadcastBufferSize = 1000

// Hub maintains the set of live subscribers and fans frames out to them.
// A single goroutine (Run) owns all mutations of the set.
type Hub struct {
	// Registered subscribers
	subscribers   map[*Subscriber]struct{}
	subscribersMu sync.RWMutex

	// Inbound frames from publishers
	broadcast chan []byte

	// Register requests from transports
	register chan registration

	// Unregister requests from transports and from the fan-out itself
	unregister chan *Subscriber

	// Closed when Run returns
	done chan struct{}

	// Metrics
	totalConnections int64
	totalFrames      int64
	droppedFrames    int64
	evicted          int64
	metricsMu        sync.Mutex

	metricsInterval time.Duration
	bufferSize      int
	log             *logrus.Entry
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers:     make(map[*Subscriber]struct{}),
		broadcast:       make(chan []byte, broadcastBufferSize),
		register:        make(chan registration),
		unregister:      make(chan *Subscriber),
		done:            make(chan struct{}),
		metricsInterval: 30 * time.Second,
		bufferSize:      sendBufferSize,
		log:             logging.NewLogger("hub"),
	}
}

// WithSubscriberBuffer overrides the per-subscriber frame buffer.
// Must be called before Run.
func (h *Hub) WithSubscriberBuffer(size int) *Hub {
	if size > 0 {
		h.bufferSize = size
	}
	return h
}

// Run starts the hub's main loop and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub started")

	// Start metrics reporter
	go h.reportMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case r := <-h.register:
			h.registerSubscriber(r.sub)
			close(r.done)

		case s := <-h.unregister:
			h.unregisterSubscriber(s)

		case frame := <-h.broadcast:
			h.fanOut(frame)
		}
	}
}

// registration is a pending Subscribe; done is closed once the subscriber
// is in the active set
type registration struct {
	sub  *Subscriber
	done chan struct{}
}

// Subscribe registers a new subscriber and returns once it is counted in the
// active set. Every event published after Subscribe returns is delivered to
// it in publish order. If the hub has stopped, the returned subscriber is
// already closed.
func (h *Hub) Subscribe() *Subscriber {
	s := newSubscriber(h.bufferSize)
	r := registration{sub: s, done: make(chan struct{})}
	select {
	case h.register <- r:
		<-r.done
	case <-h.done:
		s.close()
	}
	return s
}

// Unsubscribe removes a subscriber. Safe to call more than once and after
// the hub has stopped.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	select {
	case <-s.removed:
		return
	default:
	}

	select {
	case h.unregister <- s:
	case <-s.removed:
	case <-h.done:
	}
}

// Publish serializes an event once and queues it for fan-out.
// It never blocks on subscribers and never fails the caller.
func (h *Hub) Publish(event models.Event) {
	frame, err := event.Frame()
	if err != nil {
		h.log.WithError(err).WithField("type", event.Type).Error("failed to serialize event")
		return
	}
	h.PublishFrame(frame)
}

// PublishFrame queues an already-serialized frame for fan-out
func (h *Hub) PublishFrame(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		// Broadcast buffer full - drop frame
		h.incrementDroppedFrames()
		h.log.Warn("broadcast buffer full, dropping frame")
	}
}

// registerSubscriber adds a subscriber to the active set
func (h *Hub) registerSubscriber(s *Subscriber) {
	h.subscribersMu.Lock()
	h.subscribers[s] = struct{}{}
	total := len(h.subscribers)
	h.subscribersMu.Unlock()

	h.incrementTotalConnections()
	h.log.WithFields(logrus.Fields{"subscriber_id": s.ID, "total": total}).Info("subscriber connected")
}

// unregisterSubscriber removes a subscriber from the active set
func (h *Hub) unregisterSubscriber(s *Subscriber) {
	h.subscribersMu.Lock()
	_, ok := h.subscribers[s]
	if ok {
		delete(h.subscribers, s)
	}
	total := len(h.subscribers)
	h.subscribersMu.Unlock()

	if ok {
		s.close()
		h.log.WithFields(logrus.Fields{"subscriber_id": s.ID, "total": total}).Info("subscriber disconnected")
	}
}

// fanOut offers a frame to every subscriber. A subscriber whose buffer is
// full is treated as failed and removed; the others are unaffected.
func (h *Hub) fanOut(frame []byte) {
	h.subscribersMu.RLock()
	subscribers := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subscribers = append(subscribers, s)
	}
	h.subscribersMu.RUnlock()

	sent := 0
	var failed []*Subscriber

	for _, s := range subscribers {
		if s.TrySend(frame) {
			sent++
		} else {
			failed = append(failed, s)
		}
	}

	// Only the hub loop calls fanOut, so removal can happen inline
	for _, s := range failed {
		h.log.WithField("subscriber_id", s.ID).Warn("subscriber buffer full, disconnecting")
		h.unregisterSubscriber(s)
		h.incrementEvicted()
	}

	if sent > 0 {
		h.incrementTotalFrames()
	}
}

// GetMetrics returns hub metrics
func (h *Hub) GetMetrics() map[string]interface{} {
	h.subscribersMu.RLock()
	active := len(h.subscribers)
	h.subscribersMu.RUnlock()

	h.metricsMu.Lock()
	totalConnections := h.totalConnections
	totalFrames := h.totalFrames
	droppedFrames := h.droppedFrames
	evicted := h.evicted
	h.metricsMu.Unlock()

	return map[string]interface{}{
		"active_subscribers":  active,
		"total_connections":   totalConnections,
		"total_frames":        totalFrames,
		"dropped_frames":      droppedFrames,
		"evicted_subscribers": evicted,
		"broadcast_capacity":  cap(h.broadcast),
		"broadcast_usage":     len(h.broadcast),
		"subscriber_buffer":   h.bufferSize,
	}
}

// GetSubscriberCount returns the number of active subscribers
func (h *Hub) GetSubscriberCount() int {
	h.subscribersMu.RLock()
	defer h.subscribersMu.RUnlock()
	return len(h.subscribers)
}

// shutdown closes all subscribers and unblocks pending Subscribe/Unsubscribe calls
func (h *Hub) shutdown() {
	h.subscribersMu.Lock()
	h.log.WithField("active", len(h.subscribers)).Info("shutting down hub")
	for s := range h.subscribers {
		s.close()
		delete(h.subscribers, s)
	}
	h.subscribersMu.Unlock()

	close(h.done)
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(h.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := h.GetMetrics()
			h.log.WithFields(logrus.Fields{
				"subscribers":       metrics["active_subscribers"],
				"total_connections": metrics["total_connections"],
				"frames":            metrics["total_frames"],
			}).Info("hub metrics")
		}
	}
}

// incrementTotalConnections safely increments the total connections counter
func (h *Hub) incrementTotalConnections() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalConnections++
}

// incrementTotalFrames safely increments the total frames counter
func (h *Hub) incrementTotalFrames() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalFrames++
}

func (h *Hub) incrementDroppedFrames() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.droppedFrames++
}

func (h *Hub) incrementEvicted() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.evicted++
}
