package models

import (
	"time"

	"github.com/google/uuid"
)

// Telemetry event types emitted by the server itself. Clients may send any other type.
const (
	EventTypeQuestStarted    = "quest_started"
	EventTypeTurnProcessed   = "turn_processed"
	EventTypeSafetyRedirect  = "safety_redirect"
	EventTypeGenerationError = "generation_fallback"
	EventTypeQuestCompleted  = "quest_completed"
)

// TelemetryEvent is an append-only analytics record. It has no referential
// integrity with quests: QuestID may point to nothing.
type TelemetryEvent struct {
	ID         uuid.UUID              `json:"id" db:"id"`
	EventType  string                 `json:"eventType" db:"event_type"`
	QuestID    *uuid.UUID             `json:"quest_id,omitempty" db:"quest_id"`
	ChildID    *string                `json:"child_id,omitempty" db:"child_id"`
	TurnNumber *int                   `json:"turn_number,omitempty" db:"turn_number"`
	LatencyMs  *int64                 `json:"latency_ms,omitempty" db:"latency_ms"`
	ChildInput *string                `json:"child_input,omitempty" db:"child_input"`
	AIResponse *string                `json:"ai_response,omitempty" db:"ai_response"`
	Payload    map[string]interface{} `json:"payload,omitempty" db:"payload"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
