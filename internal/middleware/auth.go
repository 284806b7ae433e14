package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/service"
)

const (
	HeaderAPIKey = "X-API-Key"
	HeaderUserID = "X-User-ID"

	ContextEntityKey  = "entity"
	ContextRelPathKey = "entity_rel_path"
)

// EntityResolver 按 base path 最长前缀匹配实体, 找不到直接 404 (不记录流量)
func EntityResolver(manager *service.EntityManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, rest, ok := manager.Resolve(c.Request.URL.Path)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			c.Abort()
			return
		}
		c.Set(ContextEntityKey, entity)
		c.Set(ContextRelPathKey, rest)
		c.Next()
	}
}

// APIKeyMiddleware enforces the entity key on mock traffic when
// auth.require_api_key is set. Must run after EntityResolver.
func APIKeyMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Auth.RequireAPIKey {
			c.Next()
			return
		}
		entity, ok := EntityFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}
		if !keyEqual(apiKey, entity.APIKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ViewerMiddleware authorizes traffic reads for the entity named by :id.
// The caller is the owner or a grantee (X-User-ID / user_id), or holds the
// entity key (X-API-Key / api_key); public entities are open.
func ViewerMiddleware(manager *service.EntityManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := manager.GetEntity(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			c.Abort()
			return
		}

		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			userID = c.Query("user_id")
		}
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if !entity.CanView(userID) && !keyEqual(apiKey, entity.APIKey) {
			status := http.StatusForbidden
			if userID == "" && apiKey == "" {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{"error": "not allowed to view this entity"})
			c.Abort()
			return
		}
		c.Set(ContextEntityKey, entity)
		c.Next()
	}
}

func EntityFromContext(c *gin.Context) (*model.Entity, bool) {
	val, exists := c.Get(ContextEntityKey)
	if !exists {
		return nil, false
	}
	entity, ok := val.(*model.Entity)
	return entity, ok
}
