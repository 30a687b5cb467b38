package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roomcast/adsync/internal/adbackend"
	"github.com/roomcast/adsync/internal/adsession"
	"github.com/roomcast/adsync/internal/airlog"
	"github.com/roomcast/adsync/internal/store"
)

// Request headers set by the ad server.
const (
	HeaderEventType      = "X-Ad-Event"
	HeaderTimestamp      = "X-Ad-Timestamp"
	HeaderSignature      = "X-Ad-Signature"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

const maxBodyBytes = 1 << 20

// CreativeResolver turns a creative object key into a fetchable URL.
// Satisfied by *storage.S3.
type CreativeResolver interface {
	ResolveCreativeURL(ctx context.Context, key string) (string, error)
}

// Handler ingests signed ad-server webhooks: verify, dedup, parse, apply,
// persist+publish.
type Handler struct {
	verifier  *Verifier
	guard     Guard
	store     store.Store
	backend   *adbackend.Client
	airs      *airlog.Repository
	creatives CreativeResolver
	logger    *zap.Logger

	secretSet     bool
	configErrOnce sync.Once
}

// NewHandler creates the webhook ingestion handler. backend, airs, and
// creatives may be nil; the related side effects are then skipped.
func NewHandler(verifier *Verifier, secretSet bool, guard Guard, st store.Store, backend *adbackend.Client, airs *airlog.Repository, creatives CreativeResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		verifier:  verifier,
		guard:     guard,
		store:     st,
		backend:   backend,
		airs:      airs,
		creatives: creatives,
		logger:    logger,
		secretSet: secretSet,
	}
}

// HandleEvent handles POST /webhooks/ad-events.
//
// Order matters: configuration, then signature, then idempotency, then
// parsing. Nothing from the payload is trusted, parsed, or logged before
// the signature checks out.
func (h *Handler) HandleEvent(c *gin.Context) {
	if !h.secretSet {
		h.configErrOnce.Do(func() {
			h.logger.Error("webhook secret not configured, refusing ad-server events")
		})
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "webhook secret not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable body"})
		return
	}

	eventType := c.GetHeader(HeaderEventType)
	timestamp := c.GetHeader(HeaderTimestamp)
	if !h.verifier.Verify(c.GetHeader(HeaderSignature), timestamp, body) {
		// Payload contents are never logged here: the body is unauthenticated.
		h.logger.Warn("webhook signature rejected",
			zap.String("event_type", eventType),
			zap.String("timestamp", timestamp),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid signature"})
		return
	}

	if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
		dup, err := h.guard.IsDuplicate(c.Request.Context(), key)
		if err != nil {
			// At-least-once delivery tolerates a reprocessed event; a
			// dropped one is worse. Process when the guard is unavailable.
			h.logger.Warn("idempotency check failed, processing anyway", zap.Error(err))
		}
		if dup {
			c.JSON(http.StatusOK, gin.H{"ok": true, "deduped": true})
			return
		}
	}

	var envelope struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid JSON"})
		return
	}
	if envelope.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "roomId required"})
		return
	}

	ev, err := adsession.DecodeEvent(eventType, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if unknown, ok := ev.(adsession.UnknownEvent); ok {
		// Forward compatibility: acknowledge types we do not model yet.
		h.logger.Info("ignoring unknown webhook event type",
			zap.String("event_type", unknown.Type),
			zap.String("room_id", envelope.RoomID),
		)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx := c.Request.Context()

	if started, ok := ev.(adsession.AdStarted); ok {
		if started.ImageURL == "" && started.ImageKey != "" && h.creatives != nil {
			url, err := h.creatives.ResolveCreativeURL(ctx, started.ImageKey)
			if err != nil {
				// The ad still airs; viewers just get no image URL.
				h.logger.Warn("creative URL resolution failed",
					zap.Error(err),
					zap.String("image_key", started.ImageKey),
				)
			} else {
				started.ImageURL = url
				ev = started
			}
		}
	}

	snap, err := h.store.Get(ctx, envelope.RoomID)
	if err != nil {
		h.logger.Error("snapshot read failed", zap.Error(err), zap.String("room_id", envelope.RoomID))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "state store unavailable"})
		return
	}
	next := adsession.Apply(snap, ev)
	if err := h.store.Set(ctx, envelope.RoomID, next); err != nil {
		h.logger.Error("snapshot write failed", zap.Error(err), zap.String("room_id", envelope.RoomID))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "state store unavailable"})
		return
	}

	h.recordAiring(c, envelope.RoomID, ev, next)

	if _, ok := ev.(adsession.SessionIdle); ok && h.backend != nil {
		go h.backend.StopServing(envelope.RoomID)
	}

	h.logger.Info("webhook event applied",
		zap.String("event_type", ev.EventType()),
		zap.String("room_id", envelope.RoomID),
		zap.String("state", string(next.State)),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// recordAiring mirrors airings into the Postgres air log, best effort.
func (h *Handler) recordAiring(c *gin.Context, roomID string, ev adsession.Event, next adsession.RoomAdSnapshot) {
	if h.airs == nil {
		return
	}
	ctx := c.Request.Context()
	switch e := ev.(type) {
	case adsession.AdStarted:
		if next.Current == nil || next.Current.ReservationID != e.ReservationID {
			return // suppressed repeat airing, nothing aired
		}
		if err := h.airs.RecordStarted(ctx, roomID, *next.Current); err != nil {
			h.logger.Warn("air log insert failed", zap.Error(err), zap.String("room_id", roomID))
		}
	case adsession.AdCompleted:
		if err := h.airs.RecordCompleted(ctx, roomID, e.ReservationID); err != nil {
			h.logger.Warn("air log update failed", zap.Error(err), zap.String("room_id", roomID))
		}
	}
}
