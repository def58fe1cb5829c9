package models

import (
	"time"
)

// GiveawayStatus is the lifecycle state of a giveaway.
type GiveawayStatus string

const (
	GiveawayStatusDraft     GiveawayStatus = "DRAFT"
	GiveawayStatusOpen      GiveawayStatus = "OPEN"
	GiveawayStatusClosed    GiveawayStatus = "CLOSED"
	GiveawayStatusCancelled GiveawayStatus = "CANCELLED"
	GiveawayStatusCompleted GiveawayStatus = "COMPLETED"
)

// EligibilityGender values. ALL means no gender constraint.
const (
	EligibilityAll    = "ALL"
	EligibilityMale   = "MALE"
	EligibilityFemale = "FEMALE"
)

// allowedTransitions encodes the forward-only state machine.
// There is deliberately no path out of CLOSED except COMPLETED,
// and no path at all out of CANCELLED or COMPLETED.
var allowedTransitions = map[GiveawayStatus][]GiveawayStatus{
	GiveawayStatusDraft:  {GiveawayStatusOpen, GiveawayStatusCancelled},
	GiveawayStatusOpen:   {GiveawayStatusClosed, GiveawayStatusCancelled},
	GiveawayStatusClosed: {GiveawayStatusCompleted},
}

// CanTransition reports whether moving a giveaway from one status to
// another is allowed.
func CanTransition(from, to GiveawayStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Giveaway represents an item being given away by a user.
// Once OPEN it is only mutated through the state machine; the
// OPEN → CLOSED transition is owned exclusively by the draw commit.
type Giveaway struct {
	ID                string         `json:"id" gorm:"primaryKey"`
	UserID            string         `json:"user_id" gorm:"not null;index"` // creator (external user id)
	Title             string         `json:"title" gorm:"not null"`
	Slug              string         `json:"slug" gorm:"index"`
	Description       string         `json:"description" gorm:"type:text"`
	Quantity          int            `json:"quantity" gorm:"not null;default:1"` // max winners
	EligibilityGender string         `json:"eligibility_gender" gorm:"default:'ALL'"`
	Status            GiveawayStatus `json:"status" gorm:"type:varchar(16);default:'DRAFT';index"`
	WinnersCount      int            `json:"winners_count" gorm:"default:0"`
	ClosedAt          *time.Time     `json:"closed_at,omitempty"`
	DrawCompletedAt   *time.Time     `json:"draw_completed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:GiveawayID"`
	Winners      []Winner      `json:"winners,omitempty" gorm:"foreignKey:GiveawayID"`

	// Calculated fields (not stored in DB)
	ParticipantsCount int64 `json:"participants_count,omitempty" gorm:"-"`
}
