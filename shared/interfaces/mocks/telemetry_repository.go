package mocks

import (
	"context"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// TelemetryRepository is a mock type for the TelemetryRepository type
type TelemetryRepository struct {
	mock.Mock
}

var _ interfaces.TelemetryRepository = (*TelemetryRepository)(nil)

func (m *TelemetryRepository) Insert(ctx context.Context, event *models.TelemetryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
