package models

import (
	"time"

	"gorm.io/gorm"
)

// DrawUser is a local snapshot of user data needed for draws.
// Owned and managed solely by the draw service; populated via sync
// worker from the Profile Service. Gender is what the eligibility
// filter reads at commit time — a participant whose snapshot is missing
// or has no gender set is treated as ineligible for gender-restricted
// giveaways (fail closed).
type DrawUser struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string    `gorm:"index;not null" json:"username"`
	Name           string    `json:"name,omitempty"`
	Gender         string    `gorm:"type:varchar(16)" json:"gender,omitempty"` // MALE, FEMALE, OTHER or empty
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Soft delete (account deactivation upstream)
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
