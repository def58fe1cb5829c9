package models

import "time"

// ParticipantStatus is the lifecycle state of a single participation.
type ParticipantStatus string

const (
	ParticipantStatusInterested ParticipantStatus = "INTERESTED"
	ParticipantStatusSelected   ParticipantStatus = "SELECTED"
	ParticipantStatusRejected   ParticipantStatus = "REJECTED"
	ParticipantStatusWithdrawn  ParticipantStatus = "WITHDRAWN"
)

// Participant records that a user expressed interest in a giveaway.
// The (giveaway_id, user_id) pair is unique. After the draw commits the
// row is immutable (SELECTED/REJECTED); the user may only flip it to
// WITHDRAWN while the giveaway is still open.
type Participant struct {
	ID         string            `json:"id" gorm:"primaryKey"`
	GiveawayID string            `json:"giveaway_id" gorm:"not null;uniqueIndex:idx_participants_giveaway_user"`
	UserID     string            `json:"user_id" gorm:"not null;uniqueIndex:idx_participants_giveaway_user"`
	Status     ParticipantStatus `json:"status" gorm:"type:varchar(16);default:'INTERESTED';index"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	// User is the local snapshot the eligibility filter reads from.
	User *DrawUser `json:"user,omitempty" gorm:"foreignKey:UserID;references:ExternalUserID"`
}
