package mocks

import (
	"context"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// Mock TelemetryPublisher
type TelemetryPublisher struct {
	mock.Mock
}

var _ interfaces.TelemetryPublisher = (*TelemetryPublisher)(nil)

func (m *TelemetryPublisher) PublishTelemetry(ctx context.Context, event *models.TelemetryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *TelemetryPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
