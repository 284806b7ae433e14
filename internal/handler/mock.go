package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/middleware"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/service"
)

type MockHandler struct {
	svc          *service.MockService
	maxBodyBytes int64
}

func NewMockHandler(svc *service.MockService, maxBodyBytes int64) *MockHandler {
	return &MockHandler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// Serve answers any method under /api/*path. EntityResolver has already
// picked the entity and stripped its base path.
func (h *MockHandler) Serve(c *gin.Context) {
	entity, ok := middleware.EntityFromContext(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrUnmatchedRoute, "Entity not found", nil))
		return
	}

	var body []byte
	if c.Request.Body != nil {
		reader := c.Request.Body
		if h.maxBodyBytes > 0 {
			reader = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
		}
		raw, err := io.ReadAll(reader)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		body = raw
	}

	resp := h.svc.Handle(c.Request.Context(), service.MockRequest{
		Entity:  entity,
		Method:  c.Request.Method,
		Path:    c.GetString(middleware.ContextRelPathKey),
		Query:   c.Request.URL.Query(),
		Headers: c.Request.Header,
		Body:    body,
	})

	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Status(resp.Status)
	if len(resp.Body) > 0 && c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(resp.Body)
	}
}
