package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
)

// memoryQuestRepository is an in-memory QuestRepository. RunInTx holds the lock for
// the whole of fn and restores a snapshot when fn fails.
type memoryQuestRepository struct {
	mu     sync.Mutex
	quests map[uuid.UUID]*models.QuestSession
}

var _ interfaces.QuestRepository = (*memoryQuestRepository)(nil)

func newMemoryQuestRepository() *memoryQuestRepository {
	return &memoryQuestRepository{quests: make(map[uuid.UUID]*models.QuestSession)}
}

func (r *memoryQuestRepository) Create(ctx context.Context, userID, initialNarration string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.Create(ctx, userID, initialNarration)
}

func (r *memoryQuestRepository) AppendStep(ctx context.Context, questID uuid.UUID, narration, childInput string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.AppendStep(ctx, questID, narration, childInput)
}

func (r *memoryQuestRepository) Load(ctx context.Context, questID uuid.UUID) (*models.QuestSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.Load(ctx, questID)
}

func (r *memoryQuestRepository) UpdateState(ctx context.Context, questID uuid.UUID, state models.QuestState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.UpdateState(ctx, questID, state)
}

func (r *memoryQuestRepository) Complete(ctx context.Context, questID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.Complete(ctx, questID)
}

func (r *memoryQuestRepository) ListByUser(ctx context.Context, userID string) ([]models.QuestSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTx{r}.ListByUser(ctx, userID)
}

func (r *memoryQuestRepository) RunInTx(_ context.Context, fn func(repo interfaces.QuestRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[uuid.UUID]*models.QuestSession, len(r.quests))
	for id, q := range r.quests {
		snapshot[id] = cloneSession(q)
	}
	if err := fn(memoryTx{r}); err != nil {
		r.quests = snapshot
		return err
	}
	return nil
}

func (r *memoryQuestRepository) stepCount(questID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.quests[questID]; ok {
		return len(q.Steps)
	}
	return 0
}

// memoryTx operates on the repository with its lock already held.
type memoryTx struct {
	r *memoryQuestRepository
}

func (t memoryTx) Create(_ context.Context, userID, initialNarration string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	t.r.quests[id] = &models.QuestSession{
		ID:        id,
		UserID:    userID,
		State:     models.InitialQuestState(),
		CreatedAt: now,
		Steps: []models.QuestStep{{
			QuestID:    id,
			StepNumber: 1,
			Narration:  initialNarration,
			ChildInput: models.InitialStepMarker,
			CreatedAt:  now,
		}},
	}
	return id, nil
}

func (t memoryTx) AppendStep(_ context.Context, questID uuid.UUID, narration, childInput string) (int, error) {
	q, ok := t.r.quests[questID]
	if !ok {
		return 0, models.ErrQuestNotFound
	}
	n := q.LastStepNumber() + 1
	q.Steps = append(q.Steps, models.QuestStep{
		QuestID:    questID,
		StepNumber: n,
		Narration:  narration,
		ChildInput: childInput,
		CreatedAt:  time.Now().UTC(),
	})
	return n, nil
}

func (t memoryTx) Load(_ context.Context, questID uuid.UUID) (*models.QuestSession, error) {
	q, ok := t.r.quests[questID]
	if !ok {
		return nil, models.ErrQuestNotFound
	}
	return cloneSession(q), nil
}

func (t memoryTx) UpdateState(_ context.Context, questID uuid.UUID, state models.QuestState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	q, ok := t.r.quests[questID]
	if !ok {
		return models.ErrQuestNotFound
	}
	q.State = state
	return nil
}

func (t memoryTx) Complete(_ context.Context, questID uuid.UUID) error {
	q, ok := t.r.quests[questID]
	if !ok {
		return models.ErrQuestNotFound
	}
	if q.CompletedAt == nil {
		now := time.Now().UTC()
		q.CompletedAt = &now
	}
	return nil
}

func (t memoryTx) ListByUser(_ context.Context, userID string) ([]models.QuestSummary, error) {
	summaries := []models.QuestSummary{}
	for _, q := range t.r.quests {
		if q.UserID != userID {
			continue
		}
		summaries = append(summaries, models.QuestSummary{
			ID:          q.ID,
			Branch:      q.State.Branch,
			StepCount:   len(q.Steps),
			CreatedAt:   q.CreatedAt,
			CompletedAt: q.CompletedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt.After(summaries[j].CreatedAt) })
	return summaries, nil
}

func (t memoryTx) RunInTx(_ context.Context, fn func(repo interfaces.QuestRepository) error) error {
	return fn(t)
}

func cloneSession(q *models.QuestSession) *models.QuestSession {
	c := *q
	c.Steps = append([]models.QuestStep(nil), q.Steps...)
	if q.CompletedAt != nil {
		t := *q.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// recordingSink keeps every recorded telemetry event.
type recordingSink struct {
	mu     sync.Mutex
	events []*models.TelemetryEvent
}

func (s *recordingSink) Record(event *models.TelemetryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}

// echoDirective makes a generator narrate the directive it was given.
func echoDirective(_ context.Context, _ string, userPrompt string) string {
	const marker = "Narrate next: "
	i := strings.Index(userPrompt, marker)
	if i < 0 {
		return "Once upon a time the adventure continued."
	}
	rest := userPrompt[i+len(marker):]
	if j := strings.Index(rest, "\n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
