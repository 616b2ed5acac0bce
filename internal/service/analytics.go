package service

import (
	"fmt"
	"time"

	"miniquest-server/shared/models"
)

// TimeOnTaskInProgress is reported while the quest has no completion time.
const TimeOnTaskInProgress = "In progress"

// Skill tags.
const (
	SkillCuriosity      = "Curiosity"
	SkillProblemSolving = "Problem-Solving"
	SkillBravery        = "Bravery"
	SkillLogic          = "Logic"
)

// ChoiceMade is one milestone of the play-through with the skill it exercised.
type ChoiceMade struct {
	Choice string `json:"choice"`
	Skill  string `json:"skill"`
}

// Dashboard is the parent/educator summary of a quest.
type Dashboard struct {
	TimeOnTask   string       `json:"time_on_task"`
	ChoicesMade  []ChoiceMade `json:"choices_made"`
	SkillsTagged []string     `json:"skills_tagged"`
}

var (
	riverChoice       = ChoiceMade{Choice: "Took the left path to the river", Skill: SkillCuriosity}
	riverSolvedChoice = ChoiceMade{Choice: "Solved the otter's clock riddle", Skill: SkillProblemSolving}
	caveChoice        = ChoiceMade{Choice: "Took the right path to the cave", Skill: SkillBravery}
	caveSolvedChoice  = ChoiceMade{Choice: "Found the dragon's red gem", Skill: SkillLogic}
)

// DeriveDashboard computes dashboard statistics from a loaded session. It only reads
// the session, so the same stored state always yields the same dashboard.
func DeriveDashboard(session *models.QuestSession) Dashboard {
	d := Dashboard{
		TimeOnTask:   formatTimeOnTask(session.CreatedAt, session.CompletedAt),
		ChoicesMade:  []ChoiceMade{},
		SkillsTagged: []string{},
	}

	state := session.State
	switch {
	case state.Branch.IsRiver():
		d.ChoicesMade = append(d.ChoicesMade, riverChoice)
		if state.ChallengeComplete {
			d.ChoicesMade = append(d.ChoicesMade, riverSolvedChoice)
		}
	case state.Branch.IsCave():
		d.ChoicesMade = append(d.ChoicesMade, caveChoice)
		if state.ChallengeComplete {
			d.ChoicesMade = append(d.ChoicesMade, caveSolvedChoice)
		}
	}
	for _, c := range d.ChoicesMade {
		d.SkillsTagged = append(d.SkillsTagged, c.Skill)
	}
	return d
}

func formatTimeOnTask(createdAt time.Time, completedAt *time.Time) string {
	if completedAt == nil {
		return TimeOnTaskInProgress
	}
	elapsed := completedAt.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}
	total := int(elapsed / time.Second)
	return fmt.Sprintf("%d min %d sec", total/60, total%60)
}
