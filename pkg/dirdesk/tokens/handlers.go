package tokens

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
)

// Handler exposes token lifecycle endpoints
type Handler struct {
	manager *Manager
}

// NewHandler creates a new tokens handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// StatusResponse describes the caller's external account state
type StatusResponse struct {
	State     AccountState `json:"state"`
	ExpiresAt string       `json:"expires_at,omitempty"`
	Scope     string       `json:"scope,omitempty"`
}

// Status returns the caller's external account lifecycle state
func (h *Handler) Status(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	state, account := h.manager.State(userID)
	resp := StatusResponse{State: state}
	if account != nil {
		resp.ExpiresAt = account.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.Scope = account.Scope
	}
	c.JSON(http.StatusOK, resp)
}

// ResetAccount deletes a user's external account and revokes their sessions,
// forcing re-consent (admin only)
func (h *Handler) ResetAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.manager.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.manager.Reset(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "External account reset; user must reconnect"})
}

// RegisterRoutes registers token routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tokens/status", h.Status)
}

// RegisterAdminRoutes registers admin token routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/:id/reset-account", h.ResetAccount)
}
