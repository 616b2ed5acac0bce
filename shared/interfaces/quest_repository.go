package interfaces

import (
	"context"

	"miniquest-server/shared/models"

	"github.com/google/uuid"
)

// QuestRepository defines durable storage for quest sessions and their step history.
//
//go:generate mockery --name QuestRepository --output ./mocks --outpkg mocks --case=underscore
type QuestRepository interface {
	// Create inserts a new quest in the start state together with step 1
	// (the opening narration, child input = models.InitialStepMarker).
	Create(ctx context.Context, userID string, initialNarration string) (uuid.UUID, error)

	// AppendStep adds the next step to the history and returns its number.
	// Returns models.ErrQuestNotFound if the quest does not exist.
	AppendStep(ctx context.Context, questID uuid.UUID, narration, childInput string) (int, error)

	// Load returns the quest with its steps ordered by step number.
	// Returns models.ErrQuestNotFound if not found.
	Load(ctx context.Context, questID uuid.UUID) (*models.QuestSession, error)

	// UpdateState replaces the narrative state of the quest.
	UpdateState(ctx context.Context, questID uuid.UUID, state models.QuestState) error

	// Complete sets completed_at once. Calling it again is a no-op.
	Complete(ctx context.Context, questID uuid.UUID) error

	// ListByUser returns progress summaries of every quest owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.QuestSummary, error)

	// RunInTx calls fn with a repository bound to a single transaction.
	// The transaction is committed if fn returns nil and rolled back otherwise.
	RunInTx(ctx context.Context, fn func(repo QuestRepository) error) error
}
