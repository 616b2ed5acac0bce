package narrative

import (
	"testing"

	"miniquest-server/internal/safety"
	"miniquest-server/shared/models"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name   string
		branch models.Branch
		input  string
		want   Intent
	}{
		{"left", models.BranchStart, "Left!", IntentChooseRiver},
		{"river word", models.BranchStart, "go to the RIVER", IntentChooseRiver},
		{"right", models.BranchStart, "right please", IntentChooseCave},
		{"cave word", models.BranchStart, "the cave", IntentChooseCave},
		{"river checked first", models.BranchStart, "left or right", IntentChooseRiver},
		{"bright contains right", models.BranchStart, "something bright", IntentChooseCave},
		{"nothing", models.BranchStart, "I like pizza", IntentUnknown},
		{"clock", models.BranchRiverChallenge, "it's a Clock", IntentCorrectAnswer},
		{"wrong riddle", models.BranchRiverChallenge, "a fish", IntentUnknown},
		{"red", models.BranchCaveChallenge, "RED", IntentCorrectAnswer},
		{"bored contains red", models.BranchCaveChallenge, "I'm bored", IntentCorrectAnswer},
		{"blue", models.BranchCaveChallenge, "blue", IntentUnknown},
		{"cave answer on river", models.BranchRiverChallenge, "red", IntentUnknown},
		{"ending", models.BranchRiverEnding, "left", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.branch, tt.input))
		})
	}
}

func TestTransitionFromStart(t *testing.T) {
	start := models.InitialQuestState()

	t.Run("left goes to the river", func(t *testing.T) {
		out := Transition(start, "left")
		assert.Equal(t, models.QuestState{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle}, out.State)
		assert.Equal(t, DirectiveRiverChallenge, out.Directive)
		assert.True(t, out.Changed)
		assert.False(t, out.Terminal)
	})

	t.Run("right goes to the cave", func(t *testing.T) {
		out := Transition(start, "I pick the right one")
		assert.Equal(t, models.QuestState{Branch: models.BranchCaveChallenge, ChallengeType: models.ChallengeTypeColor}, out.State)
		assert.Equal(t, DirectiveCaveChallenge, out.Directive)
		assert.True(t, out.Changed)
	})

	t.Run("unclear input re-prompts", func(t *testing.T) {
		out := Transition(start, "hmm")
		assert.Equal(t, start, out.State)
		assert.Equal(t, DirectiveStartReprompt, out.Directive)
		assert.False(t, out.Changed)
		assert.False(t, out.Terminal)
	})
}

func TestTwoTurnTermination(t *testing.T) {
	tests := []struct {
		name      string
		challenge models.QuestState
		answer    string
		success   string
		ending    models.Branch
		endingDir string
	}{
		{
			name:      "river",
			challenge: models.QuestState{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle},
			answer:    "it's a clock",
			success:   DirectiveRiverSuccess,
			ending:    models.BranchRiverEnding,
			endingDir: DirectiveRiverEnding,
		},
		{
			name:      "cave",
			challenge: models.QuestState{Branch: models.BranchCaveChallenge, ChallengeType: models.ChallengeTypeColor},
			answer:    "red",
			success:   DirectiveCaveSuccess,
			ending:    models.BranchCaveEnding,
			endingDir: DirectiveCaveEnding,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solved := Transition(tt.challenge, tt.answer)
			assert.True(t, solved.State.ChallengeComplete)
			assert.Equal(t, tt.challenge.Branch, solved.State.Branch, "branch stays on the answer turn")
			assert.Equal(t, tt.success, solved.Directive)
			assert.False(t, solved.Terminal)
			assert.True(t, solved.Changed)

			// Any input ends the quest on the following turn.
			ended := Transition(solved.State, "anything at all")
			assert.Equal(t, tt.ending, ended.State.Branch)
			assert.True(t, ended.State.ChallengeComplete)
			assert.Empty(t, ended.State.ChallengeType)
			assert.Equal(t, tt.endingDir, ended.Directive)
			assert.True(t, ended.Terminal)
			assert.True(t, ended.Changed)
		})
	}
}

func TestWrongAnswerRetries(t *testing.T) {
	river := models.QuestState{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle}
	out := Transition(river, "a tree")
	assert.Equal(t, river, out.State)
	assert.Equal(t, DirectiveRiverRetry, out.Directive)
	assert.False(t, out.Changed)

	cave := models.QuestState{Branch: models.BranchCaveChallenge, ChallengeType: models.ChallengeTypeColor}
	out = Transition(cave, "blue")
	assert.Equal(t, cave, out.State)
	assert.Equal(t, DirectiveCaveRetry, out.Directive)
	assert.False(t, out.Changed)
}

func TestStartIsNeverReentered(t *testing.T) {
	inputs := []string{"left", "right", "start", "go back", "clock", "red", "anything"}
	states := []models.QuestState{
		{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle},
		{Branch: models.BranchCaveChallenge, ChallengeType: models.ChallengeTypeColor},
		{Branch: models.BranchRiverChallenge, ChallengeComplete: true, ChallengeType: models.ChallengeTypeRiddle},
		{Branch: models.BranchRiverEnding, ChallengeComplete: true},
		{Branch: models.BranchCaveEnding, ChallengeComplete: true},
	}
	for _, s := range states {
		for _, in := range inputs {
			out := Transition(s, in)
			assert.NotEqual(t, models.BranchStart, out.State.Branch, "state %+v input %q", s, in)
		}
	}
}

func TestEndingStaysTerminal(t *testing.T) {
	ended := models.QuestState{Branch: models.BranchCaveEnding, ChallengeComplete: true}
	out := Transition(ended, "left")
	assert.Equal(t, ended, out.State)
	assert.True(t, out.Terminal)
	assert.False(t, out.Changed)
}

func TestDirectivesPassSafetyFilter(t *testing.T) {
	filter := safety.NewDefaultFilter()
	for _, d := range AllDirectives {
		assert.False(t, filter.Classify(d), d)
	}
}
