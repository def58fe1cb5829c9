// services/scheduler.go
package services

import (
	"log"
	"time"

	"giveaway-draw-service/models"

	"github.com/go-co-op/gocron/v2"
)

// StartCompletionScheduler promotes CLOSED giveaways to COMPLETED once
// every winner's pickup has been verified. The pickup verification flow
// itself lives in another service; this job only observes its result.
func (s *GiveawayService) StartCompletionScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 5 minutes: complete giveaways whose pickups are all done
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			var giveaways []models.Giveaway
			err := s.DB.
				Where("status = ?", models.GiveawayStatusClosed).
				Where("winners_count > 0").
				Where(`NOT EXISTS (
					SELECT 1 FROM winners w
					JOIN pickups p ON p.winner_id = w.id
					WHERE w.giveaway_id = giveaways.id AND p.completed_at IS NULL
				)`).
				Find(&giveaways).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, g := range giveaways {
				if !models.CanTransition(g.Status, models.GiveawayStatusCompleted) {
					continue
				}
				g.Status = models.GiveawayStatusCompleted
				if err := s.DB.Save(&g).Error; err != nil {
					log.Printf("[Scheduler] Failed to complete giveaway %s: %v", g.ID, err)
				} else {
					log.Printf("✅ All pickups done — completed giveaway: %s", g.Title)
				}
			}
		}),
	)
}
