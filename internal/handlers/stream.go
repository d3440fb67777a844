package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/client"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"
)

const (
	// Reconnect delay advertised to EventSource clients, in milliseconds
	sseRetry = 2000

	// Comment frames keep idle proxies from closing the stream
	sseKeepAlive = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Public scoreboard; origins are enforced by CORS on the API routes
		return true
	},
}

// HandleStream serves the live event feed as server-sent events. Frames are
// delivered from the moment of subscription; there is no replay.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "streaming unsupported")
		return
	}

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	log := h.log.WithField("subscriber_id", sub.ID)
	log.Debug("sse subscriber connected")
	defer log.Debug("sse subscriber disconnected")

	header := w.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := sse.Encode(w, sse.Event{Event: "ready", Retry: sseRetry, Data: sub.ID}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-h.ctx.Done():
			return

		case frame, ok := <-sub.Send:
			if !ok {
				// Evicted or hub shut down; the client reconnects after sseRetry
				return
			}
			if err := sse.Encode(w, sse.Event{Data: string(frame)}); err != nil {
				log.WithError(err).Debug("sse write failed")
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	sub := h.hub.Subscribe()
	c := client.NewClient(sub, conn, h.hub, h.currentMatch)

	// Pumps outlive the request; they stop with the handler context
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)

	h.log.WithField("subscriber_id", c.ID()).Debug("websocket connection established")
}

func (h *Handler) currentMatch() *models.Match {
	return h.reader.Snapshot().CurrentMatch
}
