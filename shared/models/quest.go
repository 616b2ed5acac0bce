package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Branch is the storyline position of a quest. Stored as TEXT in quests.branch.
type Branch string

const (
	BranchStart          Branch = "start"
	BranchRiverChallenge Branch = "river_challenge"
	BranchCaveChallenge  Branch = "cave_challenge"
	BranchRiverEnding    Branch = "river_ending"
	BranchCaveEnding     Branch = "cave_ending"
)

// InitialStepMarker is stored as child_input of the synthetic first step.
const InitialStepMarker = "[start]"

// Challenge type tags kept in QuestState.ChallengeType while a challenge is open.
const (
	ChallengeTypeRiddle = "riddle"
	ChallengeTypeColor  = "color"
)

// Valid reports whether b is one of the known branches.
func (b Branch) Valid() bool {
	switch b {
	case BranchStart, BranchRiverChallenge, BranchCaveChallenge, BranchRiverEnding, BranchCaveEnding:
		return true
	}
	return false
}

// IsTerminal reports whether b is an ending.
func (b Branch) IsTerminal() bool {
	return b == BranchRiverEnding || b == BranchCaveEnding
}

// IsRiver reports whether b belongs to the river storyline.
func (b Branch) IsRiver() bool { return strings.Contains(string(b), "river") }

// IsCave reports whether b belongs to the cave storyline.
func (b Branch) IsCave() bool { return strings.Contains(string(b), "cave") }

// QuestState is the narrative state persisted with a quest.
type QuestState struct {
	Branch            Branch `json:"branch" db:"branch"`
	ChallengeComplete bool   `json:"challenge_complete" db:"challenge_complete"`
	ChallengeType     string `json:"challenge_type,omitempty" db:"challenge_type"`
}

// InitialQuestState returns the state of a freshly created quest.
func InitialQuestState() QuestState {
	return QuestState{Branch: BranchStart}
}

// Validate checks the state before it is written or after it is read.
func (s QuestState) Validate() error {
	if !s.Branch.Valid() {
		return fmt.Errorf("%w: unknown branch %q", ErrInvalidQuestState, s.Branch)
	}
	if s.Branch == BranchStart && s.ChallengeComplete {
		return fmt.Errorf("%w: challenge cannot be complete on %q", ErrInvalidQuestState, s.Branch)
	}
	return nil
}

// QuestStep is one immutable entry of the quest history.
type QuestStep struct {
	QuestID    uuid.UUID `json:"quest_id" db:"quest_id"`
	StepNumber int       `json:"step_number" db:"step_number"`
	Narration  string    `json:"narration" db:"narration"`
	ChildInput string    `json:"child_input" db:"child_input"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// IsInitial reports whether the step is the synthetic opening step.
func (s QuestStep) IsInitial() bool {
	return s.ChildInput == InitialStepMarker
}

// QuestSession is one play-through of a child together with its ordered history.
type QuestSession struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	State       QuestState  `json:"state"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	Steps       []QuestStep `json:"steps"`
}

// IsCompleted reports whether the completion timestamp has been set.
func (q *QuestSession) IsCompleted() bool {
	return q.CompletedAt != nil
}

// LastStepNumber returns the number of the newest step, 0 when history is empty.
func (q *QuestSession) LastStepNumber() int {
	if len(q.Steps) == 0 {
		return 0
	}
	return q.Steps[len(q.Steps)-1].StepNumber
}

// RecentSteps returns up to n newest steps in chronological order.
func (q *QuestSession) RecentSteps(n int) []QuestStep {
	if n <= 0 || len(q.Steps) == 0 {
		return nil
	}
	if len(q.Steps) <= n {
		return q.Steps
	}
	return q.Steps[len(q.Steps)-n:]
}

// QuestStatus is the coarse progress of a quest as shown in progress listings.
type QuestStatus string

const (
	QuestStatusInProgress QuestStatus = "in_progress"
	QuestStatusCompleted  QuestStatus = "completed"
)

// QuestSummary is a row of the per-user progress listing.
type QuestSummary struct {
	ID          uuid.UUID  `json:"quest_id" db:"id"`
	Branch      Branch     `json:"branch" db:"branch"`
	StepCount   int        `json:"step_count" db:"step_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Status derives the progress status from the completion timestamp.
func (s QuestSummary) Status() QuestStatus {
	if s.CompletedAt != nil {
		return QuestStatusCompleted
	}
	return QuestStatusInProgress
}
