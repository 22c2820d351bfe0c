package sites

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/directory"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

// Handler handles collaboration site requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new sites handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// SiteResponse represents a site in API responses
type SiteResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	URL              string `json:"url"`
	Description      string `json:"description"`
	DepartmentID     uint   `json:"department_id"`
	FromExternalSync bool   `json:"from_external_sync"`
}

func toResponse(site *models.Site) SiteResponse {
	return SiteResponse{
		ID:               site.ID,
		Name:             site.Name,
		URL:              site.URL,
		Description:      site.Description,
		DepartmentID:     site.DepartmentID,
		FromExternalSync: site.FromExternalSync,
	}
}

// List returns all local sites, optionally filtered by department
func (h *Handler) List(c *gin.Context) {
	query := h.db.Order("name")
	if dept := c.Query("department_id"); dept != "" {
		query = query.Where("department_id = ?", dept)
	}

	var sites []models.Site
	if err := query.Find(&sites).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sites"})
		return
	}

	responses := make([]SiteResponse, len(sites))
	for i := range sites {
		responses[i] = toResponse(&sites[i])
	}
	c.JSON(http.StatusOK, responses)
}

// CreateRequest represents a site creation request
type CreateRequest struct {
	Name         string `json:"name" binding:"required"`
	URL          string `json:"url" binding:"required,url"`
	Description  string `json:"description"`
	DepartmentID uint   `json:"department_id" binding:"required"`
}

// Create registers a local site (admin only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.First(&models.Department{}, req.DepartmentID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Department not found"})
		return
	}

	var existing models.Site
	if err := h.db.Where("url = ?", req.URL).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Site with this URL already exists"})
		return
	}

	site := models.Site{
		Name:         req.Name,
		URL:          req.URL,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
	}
	if err := h.db.Create(&site).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		return
	}

	c.JSON(http.StatusCreated, toResponse(&site))
}

// UpdateRequest represents a site update request
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update updates a site's locally editable fields (admin only)
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site ID"})
		return
	}

	var site models.Site
	if err := h.db.First(&site, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		site.Name = *req.Name
	}
	if req.Description != nil {
		site.Description = *req.Description
	}

	if err := h.db.Save(&site).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update site"})
		return
	}

	c.JSON(http.StatusOK, toResponse(&site))
}

// Delete deletes a site unless provenance-locked (admin only)
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site ID"})
		return
	}

	if err := directory.DeleteIfAllowed(h.db, directory.KindSite, uint(id)); err != nil {
		switch {
		case errors.Is(err, directory.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		case errors.Is(err, directory.ErrProvenanceLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "Site is managed by the external directory and cannot be deleted here"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete site"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkDeleteRequest selects sites for bulk deletion
type BulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// BulkDelete deletes locally administered sites (admin only)
func (h *Handler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := directory.BulkDeleteLocalOnly(h.db, directory.KindSite, req.IDs)
	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers site routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sites", h.List)
}

// RegisterAdminRoutes registers admin site routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/sites", h.Create)
	rg.PUT("/sites/:id", h.Update)
	rg.DELETE("/sites/:id", h.Delete)
	rg.POST("/sites/bulk-delete", h.BulkDelete)
}
