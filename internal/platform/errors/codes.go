// Package errors provides structured error handling for the quest engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Energy errors
	CodeInsufficientEnergy Code = "INSUFFICIENT_ENERGY"

	// Encounter errors
	CodeNoActiveEncounter        Code = "NO_ACTIVE_ENCOUNTER"
	CodeEncounterAlreadyActive   Code = "ENCOUNTER_ALREADY_ACTIVE"
	CodeAlreadyParticipating     Code = "ALREADY_PARTICIPATING"
	CodeEncounterInWrongChannel  Code = "ENCOUNTER_IN_WRONG_CHANNEL"
	CodeEncounterAlreadyResolved Code = "ENCOUNTER_ALREADY_RESOLVED"

	// Inventory errors
	CodeUnknownItem    Code = "UNKNOWN_ITEM"
	CodeEmptyInventory Code = "EMPTY_INVENTORY"

	// Dungeon errors
	CodeNotAtSafeHaven     Code = "NOT_AT_SAFE_HAVEN"
	CodeNoActiveDungeonRun Code = "NO_ACTIVE_DUNGEON_RUN"
	CodeDungeonRunActive   Code = "DUNGEON_RUN_ACTIVE"

	// Progression errors
	CodeBelowLevelCapForPrestige     Code = "BELOW_LEVEL_CAP_FOR_PRESTIGE"
	CodeBelowPrestigeCapForTranscend Code = "BELOW_PRESTIGE_CAP_FOR_TRANSCEND"
	CodeChallengePathViolation       Code = "CHALLENGE_PATH_VIOLATION"

	// Hardcore errors
	CodeHardcoreAlreadyEnabled Code = "HARDCORE_ALREADY_ENABLED"
	CodeHardcoreNotEnabled     Code = "HARDCORE_NOT_ENABLED"

	// Config errors
	CodeInvalidConfigFormula Code = "INVALID_CONFIG_FORMULA"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Category groups codes by how callers should treat them.
type Category string

const (
	// CategoryInvalidArgument marks validation failures and bad input.
	CategoryInvalidArgument Category = "INVALID_ARGUMENT"
	// CategoryFailedPrecondition marks operations the current state disallows.
	CategoryFailedPrecondition Category = "FAILED_PRECONDITION"
	// CategoryNotFound marks missing resources.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryInternal marks unexpected failures.
	CategoryInternal Category = "INTERNAL"
)

// CodeCategory maps domain codes to caller-facing categories.
func (c Code) CodeCategory() Category {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeUnknownItem,
		CodeInvalidConfigFormula:
		return CategoryInvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInsufficientEnergy,
		CodeEncounterAlreadyActive,
		CodeAlreadyParticipating,
		CodeEncounterInWrongChannel,
		CodeEncounterAlreadyResolved,
		CodeEmptyInventory,
		CodeNotAtSafeHaven,
		CodeDungeonRunActive,
		CodeBelowLevelCapForPrestige,
		CodeBelowPrestigeCapForTranscend,
		CodeChallengePathViolation,
		CodeHardcoreAlreadyEnabled,
		CodeHardcoreNotEnabled:
		return CategoryFailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeNoActiveEncounter,
		CodeNoActiveDungeonRun:
		return CategoryNotFound

	default:
		return CategoryInternal
	}
}
