package services

import "errors"

// Request-level faults. All are caller-recoverable: handlers map them to 4xx
// responses and persisted state is left untouched when they fire.
var (
	ErrProfileNotFound       = errors.New("profile not found")
	ErrBuildingNotAvailable  = errors.New("building not available")
	ErrAlreadyUpgrading      = errors.New("building is already upgrading")
	ErrInvalidBuildingType   = errors.New("invalid building type")
	ErrInsufficientResources = errors.New("not enough resources")
	ErrBattleNotFound        = errors.New("battle not found")
	ErrNoAvailableHero       = errors.New("no available hero")
)
