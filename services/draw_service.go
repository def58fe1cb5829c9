// services/draw_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"giveaway-draw-service/models"
	"giveaway-draw-service/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// drawCommitTimeout bounds the atomic commit. It is deliberately well
// under DrawLockLease so a slow store cannot outlive the lock.
const drawCommitTimeout = 10 * time.Second

// DrawNotifier is the outbound collaborator for draw notifications.
// Fire-and-forget: implementations must never block the caller and
// must swallow (log) their own delivery failures.
type DrawNotifier interface {
	Notify(userID, kind string, payload map[string]interface{})
}

// DrawService closes giveaways and selects winners. The sequence is
// lock → load → validate → filter → sample → commit → notify, with the
// lock released on every exit path.
type DrawService struct {
	DB       *gorm.DB
	Locks    *DrawLockService
	Notifier DrawNotifier

	// afterWinnersHook runs inside the commit transaction right after
	// the winner rows are written. Tests use it to inject mid-commit
	// failures; it is nil in production.
	afterWinnersHook func(tx *gorm.DB) error
}

func NewDrawService(db *gorm.DB, locks *DrawLockService, notifier DrawNotifier) *DrawService {
	return &DrawService{DB: db, Locks: locks, Notifier: notifier}
}

// DrawResult is the committed outcome returned to the caller.
type DrawResult struct {
	Giveaway *models.Giveaway `json:"giveaway"`
	Winners  []models.Winner  `json:"winners"`
}

// CloseDraw closes the giveaway and selects winner(s) using
// cryptographically secure randomness. At most one execution per
// giveaway can be in flight across all service instances; concurrent
// callers get ErrDrawInProgress immediately instead of queueing.
func (s *DrawService) CloseDraw(ctx context.Context, giveawayID, callerID string) (*DrawResult, error) {
	acquired, err := s.Locks.Acquire(ctx, giveawayID, DrawLockLease)
	if err != nil {
		return nil, fmt.Errorf("close draw: %w", err)
	}
	if !acquired {
		return nil, ErrDrawInProgress
	}
	defer func() {
		// The caller's context may already be cancelled; the release
		// must still happen or the lock leaks until the lease expires.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Locks.Release(releaseCtx, giveawayID); err != nil {
			log.Printf("⚠️ Failed to release draw lock for giveaway %s: %v", giveawayID, err)
		}
	}()

	var giveaway models.Giveaway
	err = s.DB.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&giveaway, "id = ?", giveawayID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("close draw: load giveaway %s: %w", giveawayID, err)
	}

	if giveaway.UserID != callerID {
		return nil, ErrNotGiveawayOwner
	}
	if giveaway.Status != models.GiveawayStatusOpen {
		return nil, ErrGiveawayNotOpen
	}

	// Filter again even though interest-time already checked: rules or
	// participant attributes may have changed since.
	eligible := FilterEligibleParticipants(giveaway.Participants, &giveaway)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleParticipants
	}

	winnersToSelect := giveaway.Quantity
	if winnersToSelect > len(eligible) {
		winnersToSelect = len(eligible)
	}
	indices, err := utils.SampleIndices(len(eligible), winnersToSelect)
	if err != nil {
		return nil, fmt.Errorf("close draw: sample winners: %w", err)
	}
	selected := make([]models.Participant, 0, len(indices))
	for _, idx := range indices {
		selected = append(selected, eligible[idx])
	}

	// The caller's deadline applies up to here; once the commit begins
	// it runs to completion or rollback.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("close draw aborted before commit: %w", err)
	}

	winners, err := s.commitDraw(ctx, &giveaway, selected, len(eligible), callerID)
	if err != nil {
		return nil, err
	}

	// Notifications are async and must never roll back the committed
	// draw; failures stay inside the dispatcher.
	go s.sendDrawNotifications(&giveaway, selected)

	return &DrawResult{Giveaway: &giveaway, Winners: winners}, nil
}

// sendDrawNotifications hands one message per participant to the
// dispatcher: WINNER_SELECTED for selected users, DRAW_CLOSED for every
// other non-withdrawn participant.
func (s *DrawService) sendDrawNotifications(giveaway *models.Giveaway, selected []models.Participant) {
	if s.Notifier == nil {
		return
	}

	selectedIDs := make(map[string]bool, len(selected))
	for _, p := range selected {
		selectedIDs[p.UserID] = true
	}

	for _, p := range giveaway.Participants {
		payload := map[string]interface{}{
			"giveaway_id": giveaway.ID,
			"title":       giveaway.Title,
		}
		switch {
		case selectedIDs[p.UserID]:
			s.Notifier.Notify(p.UserID, "WINNER_SELECTED", payload)
		case p.Status != models.ParticipantStatusWithdrawn:
			s.Notifier.Notify(p.UserID, "DRAW_CLOSED", payload)
		}
	}
}

// --- Fiber endpoints ---

// CloseDrawEndpoint handles POST /draw/:giveaway_id/close
func (s *DrawService) CloseDrawEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}
	giveawayID := c.Params("giveaway_id")

	result, err := s.CloseDraw(c.UserContext(), giveawayID, userID)
	if err != nil {
		status := drawErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("❌ Draw close failed for giveaway %s: %v", giveawayID, err)
			return c.Status(status).JSON(fiber.Map{"error": "failed to close draw"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("🎉 Draw completed for giveaway %s: %d winner(s)", giveawayID, len(result.Winners))
	return c.JSON(result)
}

// GetDrawResultsEndpoint handles GET /draw/:giveaway_id/results.
// Public read: pickup codes are never exposed here.
func (s *DrawService) GetDrawResultsEndpoint(c *fiber.Ctx) error {
	giveawayID := c.Params("giveaway_id")

	var giveaway models.Giveaway
	if err := s.DB.First(&giveaway, "id = ?", giveawayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Giveaway not found"})
		}
		log.Printf("DB Error fetching giveaway %s: %v", giveawayID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var participantCount int64
	if err := s.DB.Model(&models.Participant{}).
		Where("giveaway_id = ?", giveawayID).
		Count(&participantCount).Error; err != nil {
		log.Printf("DB Error counting participants for %s: %v", giveawayID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var winners []models.Winner
	if err := s.DB.Where("giveaway_id = ?", giveawayID).
		Order("draw_number ASC").
		Find(&winners).Error; err != nil {
		log.Printf("DB Error fetching winners for %s: %v", giveawayID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"giveaway_id":        giveaway.ID,
		"status":             giveaway.Status,
		"participants_count": participantCount,
		"winners_count":      giveaway.WinnersCount,
		"winners":            winners,
		"draw_completed_at":  giveaway.DrawCompletedAt,
	})
}

// drawErrorStatus maps draw error kinds to HTTP statuses.
func drawErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrDrawInProgress):
		return fiber.StatusConflict
	case errors.Is(err, ErrGiveawayNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotGiveawayOwner):
		return fiber.StatusForbidden
	case errors.Is(err, ErrGiveawayNotOpen), errors.Is(err, ErrNoEligibleParticipants):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
