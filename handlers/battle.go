// handlers/battle.go
package handlers

import (
	"strconv"

	"idle-kingdom-server/middleware"
	"idle-kingdom-server/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBattleRoutes(app *fiber.App, battles *services.BattleService) {
	secured := app.Group("/game/battle", middleware.UserContextMiddleware())

	secured.Post("/start-pve", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		battle, err := battles.StartEncounter(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "battle": battle})
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		battleID, err := parseBattleID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid battle id",
			})
		}

		battle, err := battles.GetBattle(battleID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "battle": battle})
	})

	secured.Get("/:id/snapshot", func(c *fiber.Ctx) error {
		battleID, err := parseBattleID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid battle id",
			})
		}

		// GetBattle settles any due round before projecting
		battle, err := battles.GetBattle(battleID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "snapshot": services.Snapshot(battle)})
	})
}

func parseBattleID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
