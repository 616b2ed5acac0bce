package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"miniquest-server/shared/interfaces/mocks"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEvent(eventType string) *models.TelemetryEvent {
	return &models.TelemetryEvent{ID: uuid.New(), EventType: eventType, CreatedAt: time.Now()}
}

func TestTelemetryWorker(t *testing.T) {
	t.Run("stores and publishes every event", func(t *testing.T) {
		events := make(chan *models.TelemetryEvent, 4)
		repo := new(mocks.TelemetryRepository)
		publisher := new(mocks.TelemetryPublisher)
		first, second := newEvent(models.EventTypeQuestStarted), newEvent(models.EventTypeTurnProcessed)
		repo.On("Insert", mock.Anything, first).Return(nil).Once()
		repo.On("Insert", mock.Anything, second).Return(nil).Once()
		publisher.On("PublishTelemetry", mock.Anything, first).Return(nil).Once()
		publisher.On("PublishTelemetry", mock.Anything, second).Return(nil).Once()

		w := NewTelemetryWorker(events, repo, publisher, zap.NewNop())
		w.Start()
		events <- first
		events <- second
		close(events)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Shutdown(ctx))
		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("sink failures do not stop the worker", func(t *testing.T) {
		events := make(chan *models.TelemetryEvent, 4)
		repo := new(mocks.TelemetryRepository)
		publisher := new(mocks.TelemetryPublisher)
		repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))
		publisher.On("PublishTelemetry", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		w := NewTelemetryWorker(events, repo, publisher, zap.NewNop())
		w.Start()
		for i := 0; i < 3; i++ {
			events <- newEvent("client_event")
		}
		close(events)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Shutdown(ctx))
		repo.AssertNumberOfCalls(t, "Insert", 3)
		publisher.AssertNumberOfCalls(t, "PublishTelemetry", 3)
	})

	t.Run("without a publisher only the database is used", func(t *testing.T) {
		events := make(chan *models.TelemetryEvent, 1)
		repo := new(mocks.TelemetryRepository)
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

		w := NewTelemetryWorker(events, repo, nil, zap.NewNop())
		events <- newEvent("client_event")
		w.Start()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Shutdown(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("shutdown honours the context", func(t *testing.T) {
		events := make(chan *models.TelemetryEvent, 1)
		repo := new(mocks.TelemetryRepository)
		started := make(chan struct{})
		release := make(chan struct{})
		repo.On("Insert", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			close(started)
			<-release
		}).Return(nil).Once()

		w := NewTelemetryWorker(events, repo, nil, zap.NewNop())
		w.Start()
		events <- newEvent("slow")
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, w.Shutdown(ctx))

		close(release)
		require.NoError(t, w.Shutdown(context.Background()))
	})
}
