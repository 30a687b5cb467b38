package stream

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roomcast/adsync/pkg/response"
)

// DebugSnapshot handles GET /debug/rooms/:roomId/ad-state. It returns the
// raw snapshot without authentication; a debugging surface only, never
// for production clients.
func (h *Handler) DebugSnapshot(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId required")
		return
	}
	snap, err := h.store.Get(c.Request.Context(), roomID)
	if err != nil {
		response.Internal(c, "state store unavailable")
		return
	}
	c.JSON(http.StatusOK, snap)
}
