package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/placeholder"
)

// Placeholders lists every supported template token.
func Placeholders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"placeholders": placeholder.Catalog()})
}
