// Package stream pushes room ad-state changes to connected viewers over
// server-sent events.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomcast/adsync/internal/store"
	"github.com/roomcast/adsync/pkg/response"
)

// EventName is the SSE event name carrying a room ad snapshot.
const EventName = "ad_state"

// nullSentinel marks an explicitly empty snapshot publish; viewers
// already hold the current state, so it is not relayed.
const nullSentinel = "null"

// Handler owns the viewer-facing stream and debug endpoints.
type Handler struct {
	store     store.Store
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a stream handler. keepAlive <= 0 falls back to 10s.
func NewHandler(st store.Store, keepAlive time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keepAlive <= 0 {
		keepAlive = 10 * time.Second
	}
	return &Handler{store: st, keepAlive: keepAlive, logger: logger}
}

// StreamRoom handles GET /rooms/ad-state/stream?roomId=... It emits the
// current snapshot immediately, then relays every publish on the room's
// channel until either side disconnects. Keep-alive comments go out every
// interval so idle-connection proxies do not cut the stream; clients must
// ignore SSE comment lines.
func (h *Handler) StreamRoom(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId required")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Internal(c, "streaming unsupported")
		return
	}

	// Subscribe before the initial snapshot read so a write landing
	// between the two is seen on the channel rather than lost.
	msgs := make(chan []byte, 16)
	cancelSub, subDone, err := h.store.Subscribe(roomID, func(payload []byte) {
		queueLatest(msgs, payload)
	})
	if err != nil {
		h.logger.Error("room subscribe failed", zap.Error(err), zap.String("room_id", roomID))
		response.Internal(c, "subscribe failed")
		return
	}

	// Both disconnect triggers (client abort, server cancellation) land
	// here; the subscription must be torn down exactly once.
	var once sync.Once
	teardown := func() { once.Do(cancelSub) }
	defer teardown()

	// The initial snapshot is the contract: the client must not wait for
	// the next event to learn current state. If the store cannot confirm
	// it, fail the connection instead of asserting a default.
	ctx := c.Request.Context()
	snap, err := h.store.Get(ctx, roomID)
	if err != nil {
		h.logger.Error("initial snapshot read failed", zap.Error(err), zap.String("room_id", roomID))
		response.Internal(c, "state store unavailable")
		return
	}

	clientID := uuid.NewString()
	h.logger.Info("viewer stream opened", zap.String("room_id", roomID), zap.String("client_id", clientID))
	defer h.logger.Info("viewer stream closed", zap.String("room_id", roomID), zap.String("client_id", clientID))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	if initial, err := json.Marshal(snap); err == nil {
		if err := writeEvent(c.Writer, initial); err != nil {
			return
		}
		flusher.Flush()
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			teardown()
			return
		case <-subDone:
			// The dedicated subscriber connection died mid-stream. Tell
			// the client and close so it reconnects, rather than idling
			// on keep-alives with no live subscription behind them.
			if ctx.Err() == nil {
				h.logger.Warn("room subscription lost mid-stream", zap.String("room_id", roomID), zap.String("client_id", clientID))
				_, _ = fmt.Fprint(c.Writer, "event: error\ndata: {\"error\":\"subscription lost\"}\n\n")
				flusher.Flush()
			}
			return
		case payload := <-msgs:
			if len(payload) == 0 || string(payload) == nullSentinel {
				continue
			}
			if err := writeEvent(c.Writer, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// queueLatest enqueues a publish without blocking the subscriber pump.
// When the viewer falls behind and the buffer fills, the oldest entry is
// dropped, never the newest: each publish carries full state, so the
// buffer must always converge on the latest snapshot.
func queueLatest(msgs chan []byte, payload []byte) {
	for {
		select {
		case msgs <- payload:
			return
		default:
			select {
			case <-msgs:
			default:
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventName, data)
	return err
}
