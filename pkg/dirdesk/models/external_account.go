package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderMicrosoft is the only provider currently wired up.
const ProviderMicrosoft = "microsoft"

// ExternalAccount stores the OAuth credential pair linking a local user to
// the upstream directory provider. At most one record exists per
// (user, provider) pair. The refresh token may be empty when the provider
// did not grant offline access; in that case the only recovery once the
// access token expires is an administrative reset.
type ExternalAccount struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_user_provider" json:"user_id"`
	Provider  string         `gorm:"not null;uniqueIndex:idx_user_provider;type:varchar(40)" json:"provider"`

	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Session represents an issued login token. Tokens carry the session ID as
// their JTI claim; deleting the row invalidates the token before its natural
// expiry (used by logout and administrative account reset).
type Session struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	TokenID   string         `gorm:"uniqueIndex;not null" json:"-"` // JWT jti
	ExpiresAt time.Time      `json:"expires_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
