package airlog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roomcast/adsync/pkg/response"
)

// Handler exposes the air log over the debug surface.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates the air-log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByRoom handles GET /debug/rooms/:roomId/airings. Accepts an
// optional ?limit= query, newest airings first.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListByRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		h.logger.Error("air log query failed", zap.Error(err), zap.String("room_id", roomID))
		response.Internal(c, "air log unavailable")
		return
	}
	if list == nil {
		list = []Airing{}
	}
	response.OK(c, list)
}
