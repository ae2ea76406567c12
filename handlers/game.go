// handlers/game.go
package handlers

import (
	"errors"
	"strconv"

	"idle-kingdom-server/middleware"
	"idle-kingdom-server/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, profiles *services.ProfileService, progression *services.ProgressionService) {
	// 🔓 Public — balance-table lookups carry no user state
	app.Get("/game/building-stats", func(c *fiber.Ctx) error {
		buildingType := c.Query("type")
		level, err := strconv.Atoi(c.Query("level"))
		if err != nil || buildingType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "type and numeric level are required",
			})
		}

		stats, ok := services.StatsFor(buildingType, level)
		if !ok {
			return respondError(c, services.ErrInvalidBuildingType)
		}
		return c.JSON(fiber.Map{"success": true, "stats": stats})
	})

	// 🔐 Secured — require user context from the gateway
	secured := app.Group("/game", middleware.UserContextMiddleware())

	secured.Get("/my-profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetProfile(userID)
		if errors.Is(err, services.ErrProfileNotFound) {
			// first access creates the kingdom
			profile, err = profiles.CreateProfile(userID)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "profile": profile})
	})

	secured.Post("/upgrade", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Type string `json:"type"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid JSON",
			})
		}

		profile, err := profiles.RequestUpgrade(userID, req.Type)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "profile": profile})
	})

	secured.Post("/reset", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.ResetProfile(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "profile": profile})
	})

	// Dev route: grant XP with a variable amount (default 1000)
	secured.Post("/cheat-xp", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Amount int64 `json:"amount"`
		}
		_ = c.BodyParser(&req)
		if req.Amount == 0 {
			req.Amount = 1000
		}

		if _, err := progression.GrantExperience(userID, req.Amount); err != nil {
			return respondError(c, err)
		}

		profile, err := profiles.GetProfile(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "profile": profile})
	})
}

// respondError maps the service error kinds onto HTTP statuses; everything
// unrecognized is a 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrBattleNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyUpgrading),
		errors.Is(err, services.ErrBuildingNotAvailable),
		errors.Is(err, services.ErrInvalidBuildingType),
		errors.Is(err, services.ErrInsufficientResources),
		errors.Is(err, services.ErrNoAvailableHero):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
}
