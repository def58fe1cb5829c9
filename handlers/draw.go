package handlers

import (
	"giveaway-draw-service/middleware"
	"giveaway-draw-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupDrawRoutes(app *fiber.App, drawService *services.DrawService) {
	// 🔓 Public: results never expose pickup codes
	app.Get("/draw/:giveaway_id/results", drawService.GetDrawResultsEndpoint)

	// 🔐 Authenticated: only the giver can close a draw
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/draw/:giveaway_id/close", drawService.CloseDrawEndpoint)
}
