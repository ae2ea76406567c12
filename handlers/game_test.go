package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"idle-kingdom-server/handlers"
	"idle-kingdom-server/models"
	"idle-kingdom-server/services"

	"github.com/gofiber/fiber/v2"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var appSeq int64

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	// unique per call so every test leaf gets an isolated database
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", t.Name(), atomic.AddInt64(&appSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.PlayerProfile{},
		&models.Building{},
		&models.Hero{},
		&models.Battle{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	battles := services.NewBattleService(db)
	profiles := services.NewProfileService(db, battles)
	progression := services.NewProgressionService(db)

	app := fiber.New()
	handlers.SetupGameRoutes(app, profiles, progression)
	handlers.SetupBattleRoutes(app, battles)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, payload)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, raw)
		}
	}
	return resp, parsed
}

func TestGameRoutes(t *testing.T) {
	Convey("Given the game API", t, func() {
		app := newTestApp(t)

		Convey("The balance-table lookup is public", func() {
			resp, body := doJSON(t, app, "GET", "/game/building-stats?type=SAWMILL&level=2", "", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			stats := body["stats"].(map[string]interface{})
			cost := stats["cost"].(map[string]interface{})
			So(cost["wood"], ShouldEqual, 150)
			So(stats["production"], ShouldEqual, 120)
		})

		Convey("Profile access requires the gateway user header", func() {
			resp, body := doJSON(t, app, "GET", "/game/my-profile", "", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(body["error"], ShouldNotBeEmpty)
		})

		Convey("First profile read creates the kingdom", func() {
			resp, body := doJSON(t, app, "GET", "/game/my-profile", "user-1", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)

			profile := body["profile"].(map[string]interface{})
			So(profile["user_id"], ShouldEqual, "user-1")
			So(profile["food"], ShouldEqual, 1000)
			So(len(profile["buildings"].([]interface{})), ShouldEqual, 3)
		})

		Convey("An upgrade on an unknown building type is rejected", func() {
			_, _ = doJSON(t, app, "GET", "/game/my-profile", "user-1", nil)

			resp, body := doJSON(t, app, "POST", "/game/upgrade", "user-1",
				map[string]string{"type": "CASTLE"})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["success"], ShouldEqual, false)
		})

		Convey("A valid upgrade debits the cost and flips the building", func() {
			_, _ = doJSON(t, app, "GET", "/game/my-profile", "user-1", nil)

			resp, body := doJSON(t, app, "POST", "/game/upgrade", "user-1",
				map[string]string{"type": "SAWMILL"})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			// the real clock accrues a sliver of wood between the two requests
			profile := body["profile"].(map[string]interface{})
			So(profile["wood"].(float64), ShouldAlmostEqual, 850, 0.01)
		})
	})
}

func TestBattleRoutes(t *testing.T) {
	Convey("Given the battle API", t, func() {
		app := newTestApp(t)
		_, _ = doJSON(t, app, "GET", "/game/my-profile", "user-1", nil)

		Convey("Starting an encounter links the first able hero", func() {
			resp, body := doJSON(t, app, "POST", "/game/battle/start-pve", "user-1", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			battle := body["battle"].(map[string]interface{})
			So(battle["status"], ShouldEqual, "IN_PROGRESS")
			So(len(battle["heroes"].([]interface{})), ShouldEqual, 2)

			Convey("And the battle can be read back", func() {
				id := int(battle["id"].(float64))
				resp, body := doJSON(t, app, "GET", fmt.Sprintf("/game/battle/%d", id), "user-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["battle"].(map[string]interface{})["id"], ShouldEqual, id)
			})

			Convey("And the snapshot projection is served alongside", func() {
				id := int(battle["id"].(float64))
				resp, body := doJSON(t, app, "GET", fmt.Sprintf("/game/battle/%d/snapshot", id), "user-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				snapshot := body["snapshot"].(map[string]interface{})
				So(snapshot["battle_id"], ShouldEqual, id)
				So(snapshot["attackers"].(map[string]interface{})["active"], ShouldNotBeNil)
			})
		})

		Convey("An unknown battle id is a 404", func() {
			resp, body := doJSON(t, app, "GET", "/game/battle/4242", "user-1", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(body["success"], ShouldEqual, false)
		})

		Convey("A garbage battle id is a 400", func() {
			resp, _ := doJSON(t, app, "GET", "/game/battle/not-a-number", "user-1", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}
