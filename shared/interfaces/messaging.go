package interfaces

import (
	"context"

	"miniquest-server/shared/models"
)

// TelemetryPublisher forwards telemetry events to the message broker.
type TelemetryPublisher interface {
	// PublishTelemetry sends the event to the configured queue.
	PublishTelemetry(ctx context.Context, event *models.TelemetryEvent) error
	Close() error
}
