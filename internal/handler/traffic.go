package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/middleware"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/service"
)

type TrafficHandler struct {
	svc     *service.TrafficService
	manager *service.EntityManager
}

func NewTrafficHandler(svc *service.TrafficService, manager *service.EntityManager) *TrafficHandler {
	return &TrafficHandler{svc: svc, manager: manager}
}

// List 读取实体的流量记录 (ViewerMiddleware 之后)
func (h *TrafficHandler) List(c *gin.Context) {
	entity, ok := middleware.EntityFromContext(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing entity context", nil))
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, model.TrafficFilter{
		EntityID:   entity.ID,
		EndpointID: c.Query("endpoint_id"),
		Limit:      limit,
	})
}

// ListByEndpoint is the admin view of one endpoint's traffic.
func (h *TrafficHandler) ListByEndpoint(c *gin.Context) {
	endpointID := c.Param("id")
	entityID, ok := h.manager.EntityOf(endpointID)
	if !ok {
		c.Error(apperrors.NewNotFound("endpoint not found"))
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, model.TrafficFilter{
		EntityID:   entityID,
		EndpointID: endpointID,
		Limit:      limit,
	})
}

func (h *TrafficHandler) respond(c *gin.Context, filter model.TrafficFilter) {
	records, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	if records == nil {
		records = []*model.TrafficLog{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *TrafficHandler) Clear(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.manager.GetEntity(id); !ok {
		c.Error(apperrors.NewNotFound("entity not found"))
		return
	}
	if err := h.svc.Clear(c.Request.Context(), id); err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.NewInvalidRequest("limit must be a non-negative integer")
	}
	return limit, nil
}
