package services_test

import (
	"testing"
	"time"

	"idle-kingdom-server/models"
	"idle-kingdom-server/services"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCreateProfile(t *testing.T) {
	Convey("Given a fresh database", t, func() {
		profiles, _, _, _, _ := newGameServices(t)

		Convey("When a profile is created on first access", func() {
			profile, err := profiles.CreateProfile("user-1")
			So(err, ShouldBeNil)

			Convey("Then it starts with the stock kingdom", func() {
				So(profile.Food, ShouldEqual, 1000)
				So(profile.Wood, ShouldEqual, 1000)
				So(profile.Iron, ShouldEqual, 500)
				So(profile.Level, ShouldEqual, 1)
				So(profile.Experience, ShouldEqual, 0)
				So(len(profile.Buildings), ShouldEqual, 3)
				So(len(profile.Heroes), ShouldEqual, 1)
				So(profile.Heroes[0].Troops, ShouldEqual, profile.Heroes[0].MaxTroops)
			})

			Convey("And production rates reflect the level-1 buildings", func() {
				So(profile.FoodPerHour, ShouldEqual, 120)
				So(profile.WoodPerHour, ShouldEqual, 100)
				So(profile.IronPerHour, ShouldEqual, 50)
			})
		})
	})
}

func TestResourceAccrual(t *testing.T) {
	Convey("Given a freshly created profile", t, func() {
		profiles, _, _, clk, _ := newGameServices(t)
		_, err := profiles.CreateProfile("user-1")
		So(err, ShouldBeNil)

		Convey("When no time has elapsed", func() {
			profile, err := profiles.GetProfile("user-1")
			So(err, ShouldBeNil)

			Convey("Then reconciliation is a no-op and the cursor stays put", func() {
				So(profile.Food, ShouldEqual, 1000)
				So(profile.Wood, ShouldEqual, 1000)
				So(profile.Iron, ShouldEqual, 500)
				So(profile.LastUpdate.UTC(), ShouldHappenWithin, time.Millisecond, testEpoch)
			})
		})

		Convey("When one hour elapses", func() {
			clk.Advance(1 * time.Hour)
			profile, err := profiles.GetProfile("user-1")
			So(err, ShouldBeNil)

			Convey("Then each stock grows by its hourly rate", func() {
				So(profile.Food, ShouldAlmostEqual, 1120, 0.0001)
				So(profile.Wood, ShouldAlmostEqual, 1100, 0.0001)
				So(profile.Iron, ShouldAlmostEqual, 550, 0.0001)
				So(profile.LastUpdate.UTC(), ShouldHappenWithin, time.Millisecond, testEpoch.Add(1*time.Hour))
			})
		})
	})

	Convey("Given two identical profiles", t, func() {
		profiles, _, _, clk, _ := newGameServices(t)
		_, err := profiles.CreateProfile("split")
		So(err, ShouldBeNil)
		_, err = profiles.CreateProfile("single")
		So(err, ShouldBeNil)

		Convey("When one reconciles in two steps and the other in one", func() {
			clk.Advance(30 * time.Minute)
			_, err := profiles.GetProfile("split")
			So(err, ShouldBeNil)

			clk.Advance(30 * time.Minute)
			split, err := profiles.GetProfile("split")
			So(err, ShouldBeNil)
			single, err := profiles.GetProfile("single")
			So(err, ShouldBeNil)

			Convey("Then accrual is additive over the interval split", func() {
				So(split.Food, ShouldAlmostEqual, single.Food, 0.0001)
				So(split.Wood, ShouldAlmostEqual, single.Wood, 0.0001)
				So(split.Iron, ShouldAlmostEqual, single.Iron, 0.0001)
			})
		})
	})
}

func TestConstruction(t *testing.T) {
	Convey("Given a profile with a level-1 sawmill", t, func() {
		profiles, _, _, clk, db := newGameServices(t)
		_, err := profiles.CreateProfile("user-1")
		So(err, ShouldBeNil)

		Convey("When an upgrade is requested", func() {
			profile, err := profiles.RequestUpgrade("user-1", models.BuildingSawmill)
			So(err, ShouldBeNil)

			sawmill := findBuilding(profile, models.BuildingSawmill)
			So(sawmill, ShouldNotBeNil)

			Convey("Then the cost is debited and the timer is set", func() {
				So(profile.Wood, ShouldAlmostEqual, 850, 0.0001) // level 2 costs 150 wood
				So(sawmill.Status, ShouldEqual, models.BuildingStatusUpgrading)
				So(sawmill.Level, ShouldEqual, 1)
				So(sawmill.ConstructionEndsAt.UTC(), ShouldHappenWithin, time.Millisecond, testEpoch.Add(10*time.Second))
			})

			Convey("And a second request on the same building fails without side effects", func() {
				_, err := profiles.RequestUpgrade("user-1", models.BuildingSawmill)
				So(err, ShouldEqual, services.ErrAlreadyUpgrading)

				again, err := profiles.GetProfile("user-1")
				So(err, ShouldBeNil)
				So(again.Wood, ShouldAlmostEqual, 850, 0.0001)
			})

			Convey("And mid-upgrade it keeps producing at the old level", func() {
				clk.Advance(5 * time.Second)
				mid, err := profiles.GetProfile("user-1")
				So(err, ShouldBeNil)

				So(mid.WoodPerHour, ShouldEqual, 100)
				So(findBuilding(mid, models.BuildingSawmill).Status, ShouldEqual, models.BuildingStatusUpgrading)
			})

			Convey("And once the timer elapses the level bumps and rates follow", func() {
				clk.Advance(10 * time.Second)
				done, err := profiles.GetProfile("user-1")
				So(err, ShouldBeNil)

				upgraded := findBuilding(done, models.BuildingSawmill)
				So(upgraded.Level, ShouldEqual, 2)
				So(upgraded.Status, ShouldEqual, models.BuildingStatusActive)
				So(upgraded.ConstructionEndsAt, ShouldBeNil)
				So(done.WoodPerHour, ShouldEqual, 120) // floor(100 * 1.2)
			})
		})

		Convey("When the stock cannot cover the cost", func() {
			So(db.Model(&models.PlayerProfile{}).Where("user_id = ?", "user-1").
				Update("wood", 10).Error, ShouldBeNil)

			_, err := profiles.RequestUpgrade("user-1", models.BuildingSawmill)

			Convey("Then it fails and state is untouched", func() {
				So(err, ShouldEqual, services.ErrInsufficientResources)

				profile, err := profiles.GetProfile("user-1")
				So(err, ShouldBeNil)
				So(profile.Wood, ShouldEqual, 10)
				So(findBuilding(profile, models.BuildingSawmill).Status, ShouldEqual, models.BuildingStatusActive)
			})
		})

		Convey("When the building type is unknown", func() {
			_, err := profiles.RequestUpgrade("user-1", "CASTLE")
			So(err, ShouldEqual, services.ErrInvalidBuildingType)
		})

		Convey("When no building of the type exists", func() {
			So(db.Unscoped().Where("type = ?", models.BuildingSawmill).
				Delete(&models.Building{}).Error, ShouldBeNil)

			_, err := profiles.RequestUpgrade("user-1", models.BuildingSawmill)
			So(err, ShouldEqual, services.ErrBuildingNotAvailable)
		})
	})
}

func TestProfileReset(t *testing.T) {
	Convey("Given a progressed profile", t, func() {
		profiles, _, progression, clk, _ := newGameServices(t)
		_, err := profiles.CreateProfile("user-1")
		So(err, ShouldBeNil)

		clk.Advance(2 * time.Hour)
		_, err = profiles.GetProfile("user-1")
		So(err, ShouldBeNil)
		_, err = progression.GrantExperience("user-1", 250)
		So(err, ShouldBeNil)

		Convey("When it is reset", func() {
			profile, err := profiles.ResetProfile("user-1")
			So(err, ShouldBeNil)

			Convey("Then the kingdom is back at the starting state", func() {
				So(profile.Food, ShouldEqual, 1000)
				So(profile.Level, ShouldEqual, 1)
				So(profile.Experience, ShouldEqual, 0)
				So(len(profile.Buildings), ShouldEqual, 3)
				So(len(profile.Heroes), ShouldEqual, 1)
			})
		})
	})

	Convey("Given no profile at all", t, func() {
		profiles, _, _, _, _ := newGameServices(t)

		Convey("Then reset simply creates one", func() {
			profile, err := profiles.ResetProfile("user-1")
			So(err, ShouldBeNil)
			So(profile.UserID, ShouldEqual, "user-1")
		})
	})
}

func findBuilding(p *models.PlayerProfile, buildingType string) *models.Building {
	for i := range p.Buildings {
		if p.Buildings[i].Type == buildingType {
			return &p.Buildings[i]
		}
	}
	return nil
}
