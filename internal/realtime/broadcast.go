package realtime

import (
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/operations"
)

// PublishOperationEvent implements operations.Broadcaster. Progress frames
// are delivered only to clients subscribed to that operation id; terminal
// frames (complete/failed/cancelled) are delivered the same way but are
// never subject to the drop behavior progress frames get under
// backpressure.
func (h *Hub) PublishOperationEvent(ev operations.ProgressEvent) {
	frameType, payload := eventFrame(ev)
	env := newEnvelope(frameType, payload)

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.isSubscribed(ev.OperationID) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if ev.Terminal {
			h.sendTerminal(c, env)
			continue
		}
		if !c.enqueue(env) {
			// Client's send buffer is saturated: this progress frame is
			// dropped and the frames already queued for the client are kept.
			// Terminal frames never take this path.
			h.logger.Debug("dropping progress frame for saturated client", zap.String("client_id", c.id))
		}
	}
}

// sendTerminal guarantees delivery of a terminal frame even if the client's
// buffered channel is momentarily full, by blocking briefly on a send rather
// than silently dropping it.
func (h *Hub) sendTerminal(c *client, env Envelope) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.send <- env:
	default:
		// Buffer briefly full; terminal frames must never be dropped, so
		// block until writePump drains a slot or the client disconnects.
		select {
		case c.send <- env:
		case <-c.closeCh:
		}
	}
}

func eventFrame(ev operations.ProgressEvent) (string, ProgressPayload) {
	payload := ProgressPayload{
		OperationID: ev.OperationID,
		Processed:   ev.Processed,
		Total:       ev.Total,
		Percent:     ev.Percent,
		Message:     ev.Message,
		Status:      string(ev.State),
	}
	switch ev.State {
	case operations.StateCompleted:
		return "operation_complete", payload
	case operations.StateFailed:
		payload.Message = ev.Error
		return "operation_failed", payload
	case operations.StateCancelled:
		return "operation_cancelled", payload
	default:
		return "operation_progress", payload
	}
}

// broadcastAll delivers env to every connected client, used for heartbeats
// and the global "notification" frame class.
func (h *Hub) broadcastAll(env Envelope) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

// Notify broadcasts a notification frame to all clients.
func (h *Hub) Notify(payload NotificationPayload) {
	h.broadcastAll(newEnvelope("notification", payload))
}

// BroadcastVideoUpdate sends a cursor_invalidation notification signaling
// cursor-paginated clients to drop affected pages.
func (h *Hub) BroadcastVideoUpdate(videoID, action string, changes map[string]any) {
	h.Notify(NotificationPayload{
		Message: "video updated",
		Level:   LevelCursorInvalidation,
		Type:    "video_update",
		VideoUpdate: &VideoUpdate{
			VideoID: videoID,
			Action:  action,
			Changes: changes,
		},
	})
}

// BroadcastCacheInvalidation sends a cache_invalidation notification.
func (h *Hub) BroadcastCacheInvalidation(keys []string, reason string) {
	h.Notify(NotificationPayload{
		Message: "cache invalidated",
		Level:   LevelCacheInvalidation,
		Type:    "cache_invalidation",
		CacheInvalidation: &CacheInvalidation{
			CacheKeys: keys,
			Reason:    reason,
		},
	})
}
