package handlers

import (
	"giveaway-draw-service/middleware"
	"giveaway-draw-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGiveawayRoutes(app *fiber.App, giveawayService *services.GiveawayService) {
	// 🔓 Public giveaway detail
	app.Get("/giveaways/:id", giveawayService.GetGiveaway)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/giveaways", giveawayService.CreateGiveaway)
	secured.Post("/giveaways/:id/open", giveawayService.OpenGiveaway)
	secured.Delete("/giveaways/:id", giveawayService.CancelGiveaway)

	// Participation
	secured.Post("/giveaways/:id/interest", giveawayService.ExpressInterest)
	secured.Delete("/giveaways/:id/interest", giveawayService.WithdrawInterest)
}
