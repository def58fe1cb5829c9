// services/draw_commit.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"giveaway-draw-service/models"
	"giveaway-draw-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// commitDraw applies the whole close-and-select outcome as one atomic
// unit: giveaway → CLOSED, winner + pickup rows, participant statuses,
// and the audit entry. Any sub-step failure rolls all of it back — no
// observer ever sees a closed giveaway without winners or vice versa.
// This is the only write path allowed to touch these entities together.
func (s *DrawService) commitDraw(ctx context.Context, giveaway *models.Giveaway, selected []models.Participant, eligibleCount int, callerID string) ([]models.Winner, error) {
	// Detached from the caller's cancellation: once the transaction has
	// begun it must finish or roll back, never stop half-applied.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drawCommitTimeout)
	defer cancel()

	now := time.Now()
	winners := make([]models.Winner, 0, len(selected))
	selectedUserIDs := make([]string, 0, len(selected))
	for _, p := range selected {
		selectedUserIDs = append(selectedUserIDs, p.UserID)
	}

	err := s.DB.WithContext(commitCtx).Transaction(func(tx *gorm.DB) error {
		// Close the giveaway. The status guard makes a lost-lock race
		// impossible to commit twice: the second writer matches no row.
		res := tx.Model(&models.Giveaway{}).
			Where("id = ? AND status = ?", giveaway.ID, models.GiveawayStatusOpen).
			Updates(map[string]interface{}{
				"status":            models.GiveawayStatusClosed,
				"closed_at":         now,
				"draw_completed_at": now,
				"winners_count":     len(selected),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("giveaway %s is no longer open", giveaway.ID)
		}

		// One Winner + Pickup per selected participant, draw numbers
		// 1-indexed in draw order.
		for i, participant := range selected {
			code, err := utils.GeneratePickupCode()
			if err != nil {
				return err
			}
			winner := models.Winner{
				ID:         uuid.NewString(),
				GiveawayID: giveaway.ID,
				UserID:     participant.UserID,
				DrawNumber: i + 1,
			}
			if err := tx.Create(&winner).Error; err != nil {
				return err
			}
			pickup := models.Pickup{
				ID:         uuid.NewString(),
				WinnerID:   winner.ID,
				PickupCode: code,
			}
			if err := tx.Create(&pickup).Error; err != nil {
				return err
			}
			winner.Pickup = &pickup
			winners = append(winners, winner)
		}

		if s.afterWinnersHook != nil {
			if err := s.afterWinnersHook(tx); err != nil {
				return err
			}
		}

		// Selected participants → SELECTED, every other still-interested
		// participant → REJECTED. WITHDRAWN rows stay as they are.
		if err := tx.Model(&models.Participant{}).
			Where("giveaway_id = ? AND user_id IN ?", giveaway.ID, selectedUserIDs).
			Update("status", models.ParticipantStatusSelected).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Participant{}).
			Where("giveaway_id = ? AND status = ? AND user_id NOT IN ?",
				giveaway.ID, models.ParticipantStatusInterested, selectedUserIDs).
			Update("status", models.ParticipantStatusRejected).Error; err != nil {
			return err
		}

		// Audit entry, in the same transaction as the action it records.
		metadata, err := json.Marshal(map[string]interface{}{
			"total_eligible":   eligibleCount,
			"winners_selected": len(selected),
			"winner_ids":       selectedUserIDs,
			"timestamp":        now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		audit := models.AuditLog{
			ID:       uuid.NewString(),
			UserID:   callerID,
			Action:   "DRAW_COMPLETED",
			Entity:   "Giveaway",
			EntityID: giveaway.ID,
			Metadata: string(metadata),
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	giveaway.Status = models.GiveawayStatusClosed
	giveaway.ClosedAt = &now
	giveaway.DrawCompletedAt = &now
	giveaway.WinnersCount = len(selected)

	return winners, nil
}
