package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/service"
)

type EntityHandler struct {
	svc *service.EntityService
}

func NewEntityHandler(svc *service.EntityService) *EntityHandler {
	return &EntityHandler{svc: svc}
}

func (h *EntityHandler) List(c *gin.Context) {
	entities := h.svc.List(c.Request.Context())
	if entities == nil {
		entities = []*model.Entity{}
	}
	c.JSON(http.StatusOK, entities)
}

func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *EntityHandler) Create(c *gin.Context) {
	var req model.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entity, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusCreated, entity)
}

func (h *EntityHandler) Update(c *gin.Context) {
	var req model.UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entity, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *EntityHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EntityHandler) Share(c *gin.Context) {
	var req model.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entity, err := h.svc.Share(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *EntityHandler) Unshare(c *gin.Context) {
	entity, err := h.svc.Unshare(c.Request.Context(), c.Param("id"), c.Param("user"))
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, entity)
}
