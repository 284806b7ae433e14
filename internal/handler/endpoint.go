package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/service"
)

type EndpointHandler struct {
	svc *service.EndpointService
}

func NewEndpointHandler(svc *service.EndpointService) *EndpointHandler {
	return &EndpointHandler{svc: svc}
}

func (h *EndpointHandler) List(c *gin.Context) {
	endpoints, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if endpoints == nil {
		endpoints = []model.Endpoint{}
	}
	c.JSON(http.StatusOK, endpoints)
}

func (h *EndpointHandler) Get(c *gin.Context) {
	ep, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (h *EndpointHandler) Create(c *gin.Context) {
	var req model.EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	ep, err := h.svc.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusCreated, ep)
}

func (h *EndpointHandler) Update(c *gin.Context) {
	var req model.EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	ep, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (h *EndpointHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EndpointHandler) SwitchScenario(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("scenario index must be an integer"))
		return
	}
	resp, err := h.svc.SwitchScenario(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}
