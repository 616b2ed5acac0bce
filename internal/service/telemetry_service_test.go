package service

import (
	"testing"

	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTelemetryServiceRecordFillsDefaults(t *testing.T) {
	svc := NewTelemetryService(4, zap.NewNop())

	svc.Record(&models.TelemetryEvent{EventType: "button_click"})

	event := <-svc.Events()
	require.NotNil(t, event)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, "button_click", event.EventType)
}

func TestTelemetryServiceDropsWhenFull(t *testing.T) {
	svc := NewTelemetryService(2, zap.NewNop())

	for i := 0; i < 5; i++ {
		svc.Record(&models.TelemetryEvent{EventType: models.EventTypeTurnProcessed, TurnNumber: models.IntPtr(i)})
	}

	assert.Len(t, svc.Events(), 2)
	first := <-svc.Events()
	assert.Equal(t, 0, *first.TurnNumber)
}

func TestTelemetryServiceClose(t *testing.T) {
	svc := NewTelemetryService(2, zap.NewNop())
	svc.Record(&models.TelemetryEvent{EventType: "before_close"})

	svc.Close()
	svc.Close()
	svc.Record(&models.TelemetryEvent{EventType: "after_close"})
	svc.Record(nil)

	var got []string
	for event := range svc.Events() {
		got = append(got, event.EventType)
	}
	assert.Equal(t, []string{"before_close"}, got)
}
