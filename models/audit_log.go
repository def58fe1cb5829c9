package models

import "time"

// AuditLog is an append-only record of privileged actions. Rows are
// written inside the same transaction as the action they describe and
// are never updated or deleted.
type AuditLog struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;index"` // who performed the action
	Action    string    `json:"action" gorm:"not null;index"`  // e.g., "DRAW_COMPLETED"
	Entity    string    `json:"entity" gorm:"not null"`        // e.g., "Giveaway"
	EntityID  string    `json:"entity_id" gorm:"not null;index"`
	Metadata  string    `json:"metadata" gorm:"type:text"` // marshaled JSON
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
