package models

import "time"

// Winner is created only inside the draw commit, one row per selected
// participant, numbered 1..n in draw order. Immutable after creation.
type Winner struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	GiveawayID string    `json:"giveaway_id" gorm:"not null;index"`
	UserID     string    `json:"user_id" gorm:"not null;index"`
	DrawNumber int       `json:"draw_number" gorm:"not null"` // 1-indexed
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Pickup is created atomically with its Winner.
	Pickup *Pickup `json:"pickup,omitempty" gorm:"foreignKey:WinnerID"`
}

// Pickup holds the credential a winner presents to claim the item.
// CompletedAt is set by the pickup verification flow, not by this service.
type Pickup struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	WinnerID    string     `json:"winner_id" gorm:"not null;uniqueIndex"`
	PickupCode  string     `json:"pickup_code" gorm:"not null;uniqueIndex;type:varchar(16)"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
