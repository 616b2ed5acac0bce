package mocks

import (
	"context"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// QuestRepository is a mock type for the QuestRepository type
type QuestRepository struct {
	mock.Mock
}

var _ interfaces.QuestRepository = (*QuestRepository)(nil)

func (m *QuestRepository) Create(ctx context.Context, userID string, initialNarration string) (uuid.UUID, error) {
	args := m.Called(ctx, userID, initialNarration)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *QuestRepository) AppendStep(ctx context.Context, questID uuid.UUID, narration, childInput string) (int, error) {
	args := m.Called(ctx, questID, narration, childInput)
	return args.Int(0), args.Error(1)
}

func (m *QuestRepository) Load(ctx context.Context, questID uuid.UUID) (*models.QuestSession, error) {
	args := m.Called(ctx, questID)
	var session *models.QuestSession
	if args.Get(0) != nil {
		session = args.Get(0).(*models.QuestSession)
	}
	return session, args.Error(1)
}

func (m *QuestRepository) UpdateState(ctx context.Context, questID uuid.UUID, state models.QuestState) error {
	args := m.Called(ctx, questID, state)
	return args.Error(0)
}

func (m *QuestRepository) Complete(ctx context.Context, questID uuid.UUID) error {
	args := m.Called(ctx, questID)
	return args.Error(0)
}

func (m *QuestRepository) ListByUser(ctx context.Context, userID string) ([]models.QuestSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.QuestSummary
	if args.Get(0) != nil {
		list = args.Get(0).([]models.QuestSummary)
	}
	return list, args.Error(1)
}

// RunInTx returns the configured error if there is one, otherwise it runs fn
// against the mock itself so expectations set on the other methods apply.
func (m *QuestRepository) RunInTx(ctx context.Context, fn func(repo interfaces.QuestRepository) error) error {
	args := m.Called(ctx, mock.Anything)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}
