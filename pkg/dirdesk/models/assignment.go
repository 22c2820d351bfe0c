package models

import (
	"time"

	"gorm.io/gorm"
)

// DepartmentAssignment is the many-to-many edge between users and
// departments. For a given user at most one assignment has IsPrimary set;
// directory.SetPrimaryDepartment maintains that invariant.
type DepartmentAssignment struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_user_department" json:"user_id"`
	DepartmentID uint           `gorm:"not null;uniqueIndex:idx_user_department" json:"department_id"`
	IsPrimary    bool           `gorm:"default:false" json:"is_primary"`

	// Relationships
	User       User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Department Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

// PositionAssignment is the many-to-many edge between users and positions.
type PositionAssignment struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     uint           `gorm:"not null;uniqueIndex:idx_user_position" json:"user_id"`
	PositionID uint           `gorm:"not null;uniqueIndex:idx_user_position" json:"position_id"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Position Position `gorm:"foreignKey:PositionID" json:"position,omitempty"`
}
