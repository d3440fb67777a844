package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Buffer size for outbound frames per subscriber
const sendBufferSize = 256

// Subscriber is one live viewer's handle. The hub writes serialized event
// frames to Send; the transport drains it. Send is closed by the hub when
// the subscriber is removed.
type Subscriber struct {
	ID          string
	Send        chan []byte
	ConnectedAt time.Time

	removeOnce sync.Once
	removed    chan struct{}
}

func newSubscriber(bufferSize int) *Subscriber {
	return &Subscriber{
		ID:          uuid.New().String(),
		Send:        make(chan []byte, bufferSize),
		ConnectedAt: time.Now(),
		removed:     make(chan struct{}),
	}
}

// TrySend offers a frame without blocking.
// Returns false if the buffer is full.
func (s *Subscriber) TrySend(frame []byte) bool {
	select {
	case s.Send <- frame:
		return true
	default:
		return false
	}
}

// Removed is closed once the hub has dropped this subscriber
func (s *Subscriber) Removed() <-chan struct{} {
	return s.removed
}

// BufferSize returns the capacity of the outbound buffer
func (s *Subscriber) BufferSize() int {
	return cap(s.Send)
}

// close is called by the hub loop only
func (s *Subscriber) close() {
	s.removeOnce.Do(func() {
		close(s.Send)
		close(s.removed)
	})
}
