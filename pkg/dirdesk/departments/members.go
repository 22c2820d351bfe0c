package departments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/directory"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
)

// MemberResponse represents a department member in API responses
type MemberResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
}

// AddMemberRequest represents a request to assign a user to a department
type AddMemberRequest struct {
	UserID    uint `json:"user_id" binding:"required"`
	IsPrimary bool `json:"is_primary"`
}

// ListMembers returns all members of a department
func (h *Handler) ListMembers(c *gin.Context) {
	deptID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}

	if err := h.db.First(&models.Department{}, deptID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Department not found"})
		return
	}

	var assignments []models.DepartmentAssignment
	if err := h.db.Preload("User").Where("department_id = ?", deptID).Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	members := make([]MemberResponse, len(assignments))
	for i, a := range assignments {
		members[i] = MemberResponse{
			ID:        a.User.ID,
			Email:     a.User.Email,
			Name:      a.User.Name,
			IsPrimary: a.IsPrimary,
		}
	}

	c.JSON(http.StatusOK, members)
}

// AddMember assigns a user to a department (admin only). With is_primary set
// the assignment becomes the user's single primary department.
func (h *Handler) AddMember(c *gin.Context) {
	deptID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.First(&models.Department{}, deptID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Department not found"})
		return
	}
	if err := h.db.First(&models.User{}, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.IsPrimary {
		if err := directory.SetPrimaryDepartment(h.db, req.UserID, uint(deptID)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set primary department"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Member added as primary"})
		return
	}

	var existing models.DepartmentAssignment
	if err := h.db.Where("user_id = ? AND department_id = ?", req.UserID, deptID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
		return
	}

	assignment := models.DepartmentAssignment{
		UserID:       req.UserID,
		DepartmentID: uint(deptID),
	}
	if err := h.db.Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Member added"})
}

// SetPrimary marks this department as a user's primary one (admin only)
func (h *Handler) SetPrimary(c *gin.Context) {
	deptID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := directory.SetPrimaryDepartment(h.db, uint(userID), uint(deptID)); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User or department not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set primary department"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Primary department updated"})
}

// RemoveMember removes a user's assignment to a department (admin only)
func (h *Handler) RemoveMember(c *gin.Context) {
	deptID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department ID"})
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := directory.DeleteAssignment(h.db, directory.KindDepartment, uint(userID), uint(deptID)); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterMemberRoutes registers member routes on the given router group
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("/departments/:id/members", h.ListMembers)
}

// RegisterAdminMemberRoutes registers admin member routes
func (h *Handler) RegisterAdminMemberRoutes(rg *gin.RouterGroup) {
	rg.POST("/departments/:id/members", h.AddMember)
	rg.PUT("/departments/:id/members/:userId/primary", h.SetPrimary)
	rg.DELETE("/departments/:id/members/:userId", h.RemoveMember)
}
