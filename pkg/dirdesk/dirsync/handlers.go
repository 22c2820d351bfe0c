package dirsync

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/graph"
)

// Handler exposes reconciliation endpoints
type Handler struct {
	engine *Engine
}

// NewHandler creates a new sync handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RunRequest selects which entity kinds to reconcile. Empty means all.
type RunRequest struct {
	Kinds []string `json:"kinds"`
}

// Run triggers a reconciliation run (admin only)
func (h *Handler) Run(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.engine.Run(c.Request.Context(), userID, req.Kinds)
	if err != nil {
		if errors.Is(err, graph.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Directory account not connected or expired; reconnect and retry"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status returns the reconciliation dashboard data
func (h *Handler) Status(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	includeUpstream := c.Query("upstream") == "true"

	report, err := h.engine.Status(c.Request.Context(), userID, includeUpstream)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute status"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// RegisterRoutes registers sync routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.Run)
	rg.GET("/sync/status", h.Status)
}
