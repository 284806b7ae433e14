package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/service"
)

func RateLimitMiddleware(manager *service.EntityManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 必须在 EntityResolver 之后使用
		entity, ok := EntityFromContext(c)
		if !ok {
			c.Next()
			return
		}

		// 实体刚被删除时为 nil
		limiter := manager.Limiter(entity.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
