package database

import (
	"context"
	"fmt"
	"time"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const insertTelemetryEventQuery = `
    INSERT INTO telemetry_events
        (id, event_type, quest_id, child_id, turn_number, latency_ms, child_input, ai_response, payload, created_at)
    VALUES
        ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

var _ interfaces.TelemetryRepository = (*pgTelemetryRepository)(nil)

type pgTelemetryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgTelemetryRepository creates a telemetry repository.
func NewPgTelemetryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.TelemetryRepository {
	return &pgTelemetryRepository{
		db:     db,
		logger: logger.Named("PgTelemetryRepo"),
	}
}

// Insert fills in ID, CreatedAt and Payload when they are empty.
func (r *pgTelemetryRepository) Insert(ctx context.Context, event *models.TelemetryEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = map[string]interface{}{}
	}

	_, err := r.db.Exec(ctx, insertTelemetryEventQuery,
		event.ID,
		event.EventType,
		event.QuestID,
		event.ChildID,
		event.TurnNumber,
		event.LatencyMs,
		event.ChildInput,
		event.AIResponse,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert telemetry event",
			zap.String("eventID", event.ID.String()),
			zap.String("eventType", event.EventType),
			zap.Error(err),
		)
		return fmt.Errorf("failed to insert telemetry event: %w", err)
	}
	return nil
}
