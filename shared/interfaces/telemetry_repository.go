package interfaces

import (
	"context"

	"miniquest-server/shared/models"
)

// TelemetryRepository stores analytics events. It is independent from quest storage.
//
//go:generate mockery --name TelemetryRepository --output ./mocks --outpkg mocks --case=underscore
type TelemetryRepository interface {
	Insert(ctx context.Context, event *models.TelemetryEvent) error
}
