package handler

import (
	"time"

	"miniquest-server/internal/service"
	"miniquest-server/shared/models"
)

type startRequest struct {
	User string `json:"user" form:"user"`
}

type turnRequest struct {
	QuestID    string `json:"quest_id" form:"quest_id"`
	ChildInput string `json:"child_input" form:"child_input"`
}

// narrationResponse is returned by /start and /turn.
type narrationResponse struct {
	QuestID    string `json:"quest_id"`
	AIResponse string `json:"ai_response"`
}

type recapResponse struct {
	Recap string `json:"recap"`
}

type dashboardResponse struct {
	TimeOnTask   string               `json:"time_on_task"`
	ChoicesMade  []service.ChoiceMade `json:"choices_made"`
	SkillsTagged []string             `json:"skills_tagged"`
}

type progressItem struct {
	QuestID     string     `json:"quest_id"`
	Branch      string     `json:"branch"`
	Status      string     `json:"status"`
	StepCount   int        `json:"step_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func toProgressItems(summaries []models.QuestSummary) []progressItem {
	items := make([]progressItem, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, progressItem{
			QuestID:     s.ID.String(),
			Branch:      string(s.Branch),
			Status:      string(s.Status()),
			StepCount:   s.StepCount,
			CreatedAt:   s.CreatedAt,
			CompletedAt: s.CompletedAt,
		})
	}
	return items
}
