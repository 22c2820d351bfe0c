package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User represents a person in the directory. Records may originate locally
// (created by an administrator) or from the external directory, in which case
// FromExternalSync is true and ExternalID/TenantID are set.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"` // Optional for directory-only users
	Name         string         `gorm:"not null" json:"name"`
	JobTitle     string         `json:"job_title,omitempty"`
	SystemRole   SystemRole     `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Provenance: set once a reconciliation run has seen this user upstream.
	// While true the record cannot be deleted locally.
	FromExternalSync bool    `gorm:"default:false" json:"from_external_sync"`
	ExternalID       *string `gorm:"uniqueIndex" json:"external_id,omitempty"` // directory object id
	TenantID         *string `json:"tenant_id,omitempty"`

	// ManagerID references another User; deletion of the manager is blocked
	// while reports exist.
	ManagerID *uint `gorm:"index" json:"manager_id,omitempty"`

	// Relationships
	ExternalAccounts      []ExternalAccount      `gorm:"foreignKey:UserID" json:"external_accounts,omitempty"`
	DepartmentAssignments []DepartmentAssignment `gorm:"foreignKey:UserID" json:"department_assignments,omitempty"`
	PositionAssignments   []PositionAssignment   `gorm:"foreignKey:UserID" json:"position_assignments,omitempty"`
}
