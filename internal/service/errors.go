package service

import "errors"

var (
	// Validation errors
	ErrMissingQuestID = errors.New("quest_id is required")
	ErrInvalidQuestID = errors.New("quest_id is not a valid id")
	ErrNoHistory      = errors.New("quest has no history to recap")

	// ErrQuestCompleted is returned for turns sent after the quest reached an ending.
	ErrQuestCompleted = errors.New("quest is already completed")

	// ErrStoreUnavailable wraps storage failures that survived all retries.
	ErrStoreUnavailable = errors.New("quest storage is unavailable")
)
