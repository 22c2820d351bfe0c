package models

import (
	"time"

	"gorm.io/gorm"
)

// Site represents a collaboration site (SharePoint-style) owned by a
// department. Externally sourced sites are attached to a provenance-flagged
// catch-all department when they have no natural local parent, and are never
// updated by reconciliation once created.
type Site struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	URL         string         `gorm:"uniqueIndex;not null" json:"url"`
	Description string         `json:"description"`

	FromExternalSync bool    `gorm:"default:false" json:"from_external_sync"`
	ExternalID       *string `gorm:"uniqueIndex" json:"external_id,omitempty"`

	DepartmentID uint `gorm:"not null;index" json:"department_id"`

	// Relationships
	Department Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}
