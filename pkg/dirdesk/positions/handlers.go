package positions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/directory"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

// Handler handles position requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new positions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// PositionResponse represents a position in API responses
type PositionResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	FromExternalSync bool   `json:"from_external_sync"`
	HolderCount      int64  `json:"holder_count"`
}

func (h *Handler) toResponse(position *models.Position) PositionResponse {
	resp := PositionResponse{
		ID:               position.ID,
		Name:             position.Name,
		Description:      position.Description,
		FromExternalSync: position.FromExternalSync,
	}
	h.db.Model(&models.PositionAssignment{}).Where("position_id = ?", position.ID).Count(&resp.HolderCount)
	return resp
}

// List returns all positions
func (h *Handler) List(c *gin.Context) {
	var positions []models.Position
	if err := h.db.Order("name").Find(&positions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch positions"})
		return
	}

	responses := make([]PositionResponse, len(positions))
	for i := range positions {
		responses[i] = h.toResponse(&positions[i])
	}
	c.JSON(http.StatusOK, responses)
}

// CreateRequest represents a position creation request
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create creates a new position (admin only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.Position
	if err := h.db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Position with this name already exists"})
		return
	}

	position := models.Position{Name: req.Name, Description: req.Description}
	if err := h.db.Create(&position).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create position"})
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(&position))
}

// UpdateRequest represents a position update request
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update updates a position (admin only)
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position ID"})
		return
	}

	var position models.Position
	if err := h.db.First(&position, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Position not found"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		position.Name = *req.Name
	}
	if req.Description != nil {
		position.Description = *req.Description
	}

	if err := h.db.Save(&position).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update position"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(&position))
}

// Delete deletes a position unless provenance-locked or held (admin only)
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position ID"})
		return
	}

	if err := directory.DeleteIfAllowed(h.db, directory.KindPosition, uint(id)); err != nil {
		switch {
		case errors.Is(err, directory.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Position not found"})
		case errors.Is(err, directory.ErrProvenanceLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "Position is managed by the external directory and cannot be deleted here"})
		case errors.Is(err, directory.ErrHasDependents):
			c.JSON(http.StatusConflict, gin.H{"error": "Position still has holders"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete position"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignRequest represents a request to assign a position holder
type AssignRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// Assign assigns a user to a position (admin only)
func (h *Handler) Assign(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position ID"})
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.First(&models.Position{}, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Position not found"})
		return
	}
	if err := h.db.First(&models.User{}, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var existing models.PositionAssignment
	if err := h.db.Where("user_id = ? AND position_id = ?", req.UserID, id).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already holds this position"})
		return
	}

	assignment := models.PositionAssignment{UserID: req.UserID, PositionID: uint(id)}
	if err := h.db.Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign position"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Position assigned"})
}

// Unassign removes a user's position assignment (admin only)
func (h *Handler) Unassign(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position ID"})
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := directory.DeleteAssignment(h.db, directory.KindPosition, uint(userID), uint(id)); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove assignment"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers position routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/positions", h.List)
}

// RegisterAdminRoutes registers admin position routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/positions", h.Create)
	rg.PUT("/positions/:id", h.Update)
	rg.DELETE("/positions/:id", h.Delete)
	rg.POST("/positions/:id/holders", h.Assign)
	rg.DELETE("/positions/:id/holders/:userId", h.Unassign)
}
