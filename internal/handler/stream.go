package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mocklab/mockgate/internal/middleware"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/stream"
)

type StreamHandler struct {
	hub      *stream.Hub
	cfg      stream.ClientConfig
	upgrader websocket.Upgrader
}

func NewStreamHandler(hub *stream.Hub, cfg stream.ClientConfig) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 面向浏览器调试面板, 不限制来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades to a websocket and streams new traffic for the entity
// until either side goes away.
func (h *StreamHandler) Subscribe(c *gin.Context) {
	entity, ok := middleware.EntityFromContext(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing entity context", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		logger.Warn("websocket upgrade failed", "entity_id", entity.ID, "error", err)
		return
	}

	sub := h.hub.Subscribe(entity.ID)
	logger.Debug("live subscriber attached", "entity_id", entity.ID)
	stream.Serve(c.Request.Context(), conn, sub, h.cfg)
	logger.Debug("live subscriber detached", "entity_id", entity.ID)
}
