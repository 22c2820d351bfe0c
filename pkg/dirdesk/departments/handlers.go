package departments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/directory"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

// Handler handles department requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new departments handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// DepartmentResponse represents a department in API responses
type DepartmentResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ParentID         *uint  `json:"parent_id,omitempty"`
	FromExternalSync bool   `json:"from_external_sync"`
	MemberCount      int64  `json:"member_count"`
	ChildCount       int64  `json:"child_count"`
	SiteCount        int64  `json:"site_count"`
}

func (h *Handler) toResponse(dept *models.Department) DepartmentResponse {
	resp := DepartmentResponse{
		ID:               dept.ID,
		Name:             dept.Name,
		Description:      dept.Description,
		ParentID:         dept.ParentID,
		FromExternalSync: dept.FromExternalSync,
	}
	h.db.Model(&models.DepartmentAssignment{}).Where("department_id = ?", dept.ID).Count(&resp.MemberCount)
	h.db.Model(&models.Department{}).Where("parent_id = ?", dept.ID).Count(&resp.ChildCount)
	h.db.Model(&models.Site{}).Where("department_id = ?", dept.ID).Count(&resp.SiteCount)
	return resp
}

// List returns all departments
func (h *Handler) List(c *gin.Context) {
	var depts []models.Department
	if err := h.db.Order("name").Find(&depts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch departments"})
		return
	}

	responses := make([]DepartmentResponse, len(depts))
	for i := range depts {
		responses[i] = h.toResponse(&depts[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Get returns a single department
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}

	var dept models.Department
	if err := h.db.First(&dept, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Department not found"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(&dept))
}

// CreateRequest represents a department creation request
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

// Create creates a new department (admin only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ParentID != nil {
		if err := h.db.First(&models.Department{}, *req.ParentID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parent department not found"})
			return
		}
	}

	var existing models.Department
	if err := h.db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Department with this name already exists"})
		return
	}

	dept := models.Department{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	}
	if err := h.db.Create(&dept).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create department"})
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(&dept))
}

// UpdateRequest represents a department update request
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *uint   `json:"parent_id"`
}

// Update updates a department (admin only)
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}

	var dept models.Department
	if err := h.db.First(&dept, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Department not found"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		dept.Name = *req.Name
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.ParentID != nil {
		if *req.ParentID == dept.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Department cannot be its own parent"})
			return
		}
		// Keep the tree acyclic: the new parent must not be a descendant
		if h.isDescendant(*req.ParentID, dept.ID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot move a department under its own descendant"})
			return
		}
		dept.ParentID = req.ParentID
	}

	if err := h.db.Save(&dept).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update department"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(&dept))
}

// isDescendant reports whether candidate sits in the subtree rooted at rootID
func (h *Handler) isDescendant(candidate, rootID uint) bool {
	current := candidate
	for i := 0; i < 100; i++ { // bounded walk in case of pre-existing bad data
		var dept models.Department
		if err := h.db.First(&dept, current).Error; err != nil {
			return false
		}
		if dept.ParentID == nil {
			return false
		}
		if *dept.ParentID == rootID {
			return true
		}
		current = *dept.ParentID
	}
	return true
}

// Delete deletes a department unless provenance-locked or referenced
// (admin only)
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}

	if err := directory.DeleteIfAllowed(h.db, directory.KindDepartment, uint(id)); err != nil {
		respondDeleteError(c, err, "Department")
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkDeleteRequest selects departments for bulk deletion
type BulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// BulkDelete deletes locally administered departments (admin only)
func (h *Handler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := directory.BulkDeleteLocalOnly(h.db, directory.KindDepartment, req.IDs)
	c.JSON(http.StatusOK, result)
}

func respondDeleteError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, directory.ErrProvenanceLocked):
		c.JSON(http.StatusConflict, gin.H{"error": what + " is managed by the external directory and cannot be deleted here"})
	case errors.Is(err, directory.ErrHasDependents):
		c.JSON(http.StatusConflict, gin.H{"error": what + " still has members, child departments, or sites"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + what})
	}
}

// RegisterRoutes registers department routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/departments", h.List)
	rg.GET("/departments/:id", h.Get)
}

// RegisterAdminRoutes registers admin department routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/departments", h.Create)
	rg.PUT("/departments/:id", h.Update)
	rg.DELETE("/departments/:id", h.Delete)
	rg.POST("/departments/bulk-delete", h.BulkDelete)
}
