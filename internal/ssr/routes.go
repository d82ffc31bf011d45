package ssr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers a GET render endpoint for every route pattern.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	seen := make(map[string]bool, len(h.routes))
	for _, pattern := range h.routes {
		if seen[pattern] {
			continue
		}
		seen[pattern] = true
		router.GET(pattern, h.Render)
	}
}
