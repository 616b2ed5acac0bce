package service

import (
	"testing"
	"time"

	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveDashboard(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(3*time.Minute + 25*time.Second + 400*time.Millisecond)

	tests := []struct {
		name        string
		state       models.QuestState
		completedAt *time.Time
		wantTime    string
		wantChoices []ChoiceMade
		wantSkills  []string
	}{
		{
			name:        "fresh quest",
			state:       models.InitialQuestState(),
			wantTime:    TimeOnTaskInProgress,
			wantChoices: []ChoiceMade{},
			wantSkills:  []string{},
		},
		{
			name:        "river chosen",
			state:       models.QuestState{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle},
			wantTime:    TimeOnTaskInProgress,
			wantChoices: []ChoiceMade{riverChoice},
			wantSkills:  []string{SkillCuriosity},
		},
		{
			name:        "river ending",
			state:       models.QuestState{Branch: models.BranchRiverEnding, ChallengeComplete: true},
			completedAt: &completed,
			wantTime:    "3 min 25 sec",
			wantChoices: []ChoiceMade{riverChoice, riverSolvedChoice},
			wantSkills:  []string{SkillCuriosity, SkillProblemSolving},
		},
		{
			name:        "cave solved",
			state:       models.QuestState{Branch: models.BranchCaveChallenge, ChallengeComplete: true, ChallengeType: models.ChallengeTypeColor},
			wantTime:    TimeOnTaskInProgress,
			wantChoices: []ChoiceMade{caveChoice, caveSolvedChoice},
			wantSkills:  []string{SkillBravery, SkillLogic},
		},
		{
			name:        "cave ending",
			state:       models.QuestState{Branch: models.BranchCaveEnding, ChallengeComplete: true},
			completedAt: &completed,
			wantTime:    "3 min 25 sec",
			wantChoices: []ChoiceMade{caveChoice, caveSolvedChoice},
			wantSkills:  []string{SkillBravery, SkillLogic},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &models.QuestSession{
				ID:          uuid.New(),
				State:       tt.state,
				CreatedAt:   created,
				CompletedAt: tt.completedAt,
			}
			got := DeriveDashboard(session)
			assert.Equal(t, tt.wantTime, got.TimeOnTask)
			assert.Equal(t, tt.wantChoices, got.ChoicesMade)
			assert.Equal(t, tt.wantSkills, got.SkillsTagged)
		})
	}
}

func TestDeriveDashboardIsPure(t *testing.T) {
	completed := time.Date(2025, 3, 1, 10, 1, 5, 0, time.UTC)
	session := &models.QuestSession{
		State:       models.QuestState{Branch: models.BranchCaveEnding, ChallengeComplete: true},
		CreatedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt: &completed,
		Steps:       []models.QuestStep{{StepNumber: 1}},
	}
	before := *session

	first := DeriveDashboard(session)
	second := DeriveDashboard(session)
	assert.Equal(t, first, second)
	assert.Equal(t, before, *session)
	assert.Equal(t, "1 min 5 sec", first.TimeOnTask)
}
