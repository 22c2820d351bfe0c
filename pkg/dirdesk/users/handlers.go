package users

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/directory"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

// Handler handles user management requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID               uint   `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	JobTitle         string `json:"job_title,omitempty"`
	SystemRole       string `json:"system_role"`
	FromExternalSync bool   `json:"from_external_sync"`
	ExternalID       string `json:"external_id,omitempty"`
	ManagerID        *uint  `json:"manager_id,omitempty"`
}

func toResponse(user *models.User) UserResponse {
	resp := UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		JobTitle:         user.JobTitle,
		SystemRole:       string(user.SystemRole),
		FromExternalSync: user.FromExternalSync,
		ManagerID:        user.ManagerID,
	}
	if user.ExternalID != nil {
		resp.ExternalID = *user.ExternalID
	}
	return resp
}

// List returns all users, optionally filtered by a search term
func (h *Handler) List(c *gin.Context) {
	query := h.db.Order("name")

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", like, like)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = toResponse(&users[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Get returns a single user
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, toResponse(&user))
}

// CreateRequest represents a user creation request
type CreateRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"omitempty,min=8"`
	JobTitle  string `json:"job_title"`
	Role      string `json:"role" binding:"omitempty,oneof=admin user"`
	ManagerID *uint  `json:"manager_id"`
}

// Create creates a new locally administered user (admin only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		return
	}

	role := models.SystemRoleUser
	if req.Role == "admin" {
		role = models.SystemRoleAdmin
	}

	user := models.User{
		Email:      req.Email,
		Name:       req.Name,
		JobTitle:   req.JobTitle,
		SystemRole: role,
		ManagerID:  req.ManagerID,
	}

	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
			return
		}
		user.PasswordHash = hash
	}

	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, toResponse(&user))
}

// UpdateRequest represents a user update request
type UpdateRequest struct {
	Name      *string `json:"name"`
	JobTitle  *string `json:"job_title"`
	Role      *string `json:"role" binding:"omitempty,oneof=admin user"`
	ManagerID *uint   `json:"manager_id"`
}

// Update updates a user's locally editable fields (admin only)
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.JobTitle != nil {
		user.JobTitle = *req.JobTitle
	}
	if req.Role != nil {
		user.SystemRole = models.SystemRole(*req.Role)
	}
	if req.ManagerID != nil {
		user.ManagerID = req.ManagerID
	}

	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, toResponse(&user))
}

// Delete deletes a user unless provenance-locked or referenced (admin only)
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := directory.DeleteIfAllowed(h.db, directory.KindUser, uint(id)); err != nil {
		respondDeleteError(c, err, "User")
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkDeleteRequest selects users for bulk deletion
type BulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// BulkDelete deletes locally administered users, partitioning the result
// (admin only)
func (h *Handler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := directory.BulkDeleteLocalOnly(h.db, directory.KindUser, req.IDs)
	c.JSON(http.StatusOK, result)
}

// respondDeleteError maps directory errors to user-actionable responses
func respondDeleteError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, directory.ErrProvenanceLocked):
		c.JSON(http.StatusConflict, gin.H{"error": what + " is managed by the external directory and cannot be deleted here"})
	case errors.Is(err, directory.ErrHasDependents):
		c.JSON(http.StatusConflict, gin.H{"error": what + " still has assignments or dependent records"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + what})
	}
}

// RegisterRoutes registers user routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.List)
	rg.GET("/users/:id", h.Get)
}

// RegisterAdminRoutes registers admin user routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/users", h.Create)
	rg.PUT("/users/:id", h.Update)
	rg.DELETE("/users/:id", h.Delete)
	rg.POST("/users/bulk-delete", h.BulkDelete)
}
