package models

import (
	"time"

	"gorm.io/gorm"
)

// Department represents an organizational unit. Departments form a tree via
// ParentID; the tree must stay acyclic. Externally sourced departments carry
// an ExternalID and the provenance flag.
type Department struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`

	FromExternalSync bool    `gorm:"default:false" json:"from_external_sync"`
	ExternalID       *string `gorm:"uniqueIndex" json:"external_id,omitempty"`

	ParentID *uint `gorm:"index" json:"parent_id,omitempty"`

	// Relationships
	Parent   *Department            `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Department           `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Members  []DepartmentAssignment `gorm:"foreignKey:DepartmentID" json:"members,omitempty"`
	Sites    []Site                 `gorm:"foreignKey:DepartmentID" json:"sites,omitempty"`
}

// Position represents a job position users can be assigned to.
type Position struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`

	FromExternalSync bool    `gorm:"default:false" json:"from_external_sync"`
	ExternalID       *string `gorm:"uniqueIndex" json:"external_id,omitempty"`

	// Relationships
	Holders []PositionAssignment `gorm:"foreignKey:PositionID" json:"holders,omitempty"`
}
