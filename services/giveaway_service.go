// services/giveaway_service.go
package services

import (
	"errors"
	"log"

	"giveaway-draw-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type GiveawayService struct {
	DB       *gorm.DB
	Notifier DrawNotifier
}

func NewGiveawayService(db *gorm.DB, notifier DrawNotifier) *GiveawayService {
	return &GiveawayService{DB: db, Notifier: notifier}
}

// CreateGiveaway creates a new giveaway in DRAFT for the authenticated user.
func (s *GiveawayService) CreateGiveaway(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}

	var req struct {
		Title             string `json:"title"`
		Description       string `json:"description"`
		Quantity          int    `json:"quantity"`
		EligibilityGender string `json:"eligibility_gender"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	switch req.EligibilityGender {
	case "":
		req.EligibilityGender = models.EligibilityAll
	case models.EligibilityAll, models.EligibilityMale, models.EligibilityFemale:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid eligibility_gender"})
	}

	giveaway := &models.Giveaway{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             req.Title,
		Slug:              slug.Make(req.Title),
		Description:       req.Description,
		Quantity:          req.Quantity,
		EligibilityGender: req.EligibilityGender,
		Status:            models.GiveawayStatusDraft,
	}

	if err := s.DB.Create(giveaway).Error; err != nil {
		log.Printf("DB Error creating giveaway: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create giveaway"})
	}

	return c.Status(fiber.StatusCreated).JSON(giveaway)
}

// GetGiveaway returns a giveaway with its participant count.
func (s *GiveawayService) GetGiveaway(c *fiber.Ctx) error {
	id := c.Params("id")

	var giveaway models.Giveaway
	if err := s.DB.First(&giveaway, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Giveaway not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Model(&models.Participant{}).
		Where("giveaway_id = ? AND status <> ?", id, models.ParticipantStatusWithdrawn).
		Count(&giveaway.ParticipantsCount).Error; err != nil {
		log.Printf("DB Error counting participants for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(giveaway)
}

// OpenGiveaway moves a DRAFT giveaway to OPEN (creator only).
func (s *GiveawayService) OpenGiveaway(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var giveaway models.Giveaway
	if err := s.DB.First(&giveaway, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Giveaway not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if giveaway.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You can only open your own giveaways"})
	}
	if !models.CanTransition(giveaway.Status, models.GiveawayStatusOpen) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Giveaway cannot be opened from its current status"})
	}

	giveaway.Status = models.GiveawayStatusOpen
	if err := s.DB.Save(&giveaway).Error; err != nil {
		log.Printf("DB Error opening giveaway %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open giveaway"})
	}

	return c.JSON(giveaway)
}

// CancelGiveaway cancels a giveaway that has not been drawn yet
// (creator only). CLOSED and COMPLETED giveaways cannot be cancelled.
func (s *GiveawayService) CancelGiveaway(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var giveaway models.Giveaway
	if err := s.DB.First(&giveaway, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Giveaway not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if giveaway.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You can only cancel your own giveaways"})
	}
	if !models.CanTransition(giveaway.Status, models.GiveawayStatusCancelled) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot cancel a giveaway after its draw"})
	}

	giveaway.Status = models.GiveawayStatusCancelled
	if err := s.DB.Save(&giveaway).Error; err != nil {
		log.Printf("DB Error cancelling giveaway %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel giveaway"})
	}

	return c.JSON(fiber.Map{"message": "Giveaway cancelled", "giveaway": giveaway})
}

// ExpressInterest joins the authenticated user into an open giveaway's draw.
func (s *GiveawayService) ExpressInterest(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	giveawayID := c.Params("id")

	var giveaway models.Giveaway
	if err := s.DB.First(&giveaway, "id = ?", giveawayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Giveaway not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if giveaway.Status != models.GiveawayStatusOpen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Giveaway is not open for participation"})
	}
	if giveaway.UserID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot participate in your own giveaway"})
	}

	// Interest-time eligibility check. The draw re-checks at commit
	// time, so this is a courtesy rejection, not the enforcement point.
	if giveaway.EligibilityGender != models.EligibilityAll {
		var user models.DrawUser
		err := s.DB.First(&user, "external_user_id = ?", userID).Error
		if err != nil || user.Gender != giveaway.EligibilityGender {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not eligible for this giveaway"})
		}
	}

	var existing models.Participant
	err := s.DB.Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have already expressed interest"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	participant := &models.Participant{
		ID:         uuid.NewString(),
		GiveawayID: giveawayID,
		UserID:     userID,
		Status:     models.ParticipantStatusInterested,
	}
	if err := s.DB.Create(participant).Error; err != nil {
		log.Printf("DB Error creating participant: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to express interest"})
	}

	// Let the giver know (fire-and-forget)
	if s.Notifier != nil {
		s.Notifier.Notify(giveaway.UserID, "NEW_INTEREST", map[string]interface{}{
			"giveaway_id": giveaway.ID,
			"title":       giveaway.Title,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(participant)
}

// WithdrawInterest withdraws the authenticated user's participation.
// Not allowed once the participant has been SELECTED.
func (s *GiveawayService) WithdrawInterest(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	giveawayID := c.Params("id")

	var participant models.Participant
	err := s.DB.Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if participant.Status == models.ParticipantStatusSelected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot withdraw after being selected"})
	}

	participant.Status = models.ParticipantStatusWithdrawn
	if err := s.DB.Save(&participant).Error; err != nil {
		log.Printf("DB Error withdrawing participant: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to withdraw interest"})
	}

	return c.JSON(fiber.Map{"message": "Interest withdrawn"})
}
