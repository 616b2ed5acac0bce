package service

import (
	"sync"
	"time"

	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTelemetryBufferSize = 256

// TelemetrySink accepts telemetry events without blocking the caller.
type TelemetrySink interface {
	Record(event *models.TelemetryEvent)
}

// TelemetryService buffers telemetry events for a background worker. Recording
// never blocks: when the buffer is full or the service is closed the event is
// dropped and counted.
type TelemetryService struct {
	events chan *models.TelemetryEvent
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ TelemetrySink = (*TelemetryService)(nil)

// NewTelemetryService creates a TelemetryService with the given buffer size.
func NewTelemetryService(bufferSize int, logger *zap.Logger) *TelemetryService {
	if bufferSize <= 0 {
		bufferSize = defaultTelemetryBufferSize
	}
	return &TelemetryService{
		events: make(chan *models.TelemetryEvent, bufferSize),
		logger: logger.Named("TelemetryService"),
	}
}

// Record enqueues event, filling in its id and timestamp when missing.
func (t *TelemetryService) Record(event *models.TelemetryEvent) {
	if event == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		telemetryDroppedTotal.Inc()
		return
	}

	select {
	case t.events <- event:
	default:
		telemetryDroppedTotal.Inc()
		t.logger.Warn("Telemetry buffer is full, dropping event",
			zap.String("event_type", event.EventType),
			zap.Stringer("event_id", event.ID),
		)
	}
}

// Events is drained by the telemetry worker. It is closed by Close.
func (t *TelemetryService) Events() <-chan *models.TelemetryEvent {
	return t.events
}

// Close stops accepting events. Buffered events stay readable from Events.
func (t *TelemetryService) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.events)
}
