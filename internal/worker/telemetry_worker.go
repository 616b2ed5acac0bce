// Package worker runs background jobs that must stay off the request path.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	sinkDatabase = "database"
	sinkBroker   = "broker"

	defaultSinkTimeout = 5 * time.Second
)

var (
	telemetryStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_telemetry_events_stored_total",
			Help: "Total number of telemetry events delivered to a sink.",
		},
		[]string{"sink"},
	)
	telemetrySinkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_telemetry_sink_failures_total",
			Help: "Total number of telemetry events a sink failed to accept.",
		},
		[]string{"sink"},
	)
)

// TelemetryWorker drains telemetry events into the database and, when a publisher
// is configured, the message broker. Sink failures are logged and counted only.
type TelemetryWorker struct {
	events      <-chan *models.TelemetryEvent
	repo        interfaces.TelemetryRepository
	publisher   interfaces.TelemetryPublisher
	sinkTimeout time.Duration
	logger      *zap.Logger

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// NewTelemetryWorker creates a worker. publisher may be nil.
func NewTelemetryWorker(
	events <-chan *models.TelemetryEvent,
	repo interfaces.TelemetryRepository,
	publisher interfaces.TelemetryPublisher,
	logger *zap.Logger,
) *TelemetryWorker {
	return &TelemetryWorker{
		events:      events,
		repo:        repo,
		publisher:   publisher,
		sinkTimeout: defaultSinkTimeout,
		logger:      logger.Named("TelemetryWorker"),
		closing:     make(chan struct{}),
	}
}

// Start launches the drain loop.
func (w *TelemetryWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
	w.logger.Info("Telemetry worker started", zap.Bool("broker_enabled", w.publisher != nil))
}

func (w *TelemetryWorker) run() {
	for {
		select {
		case event, ok := <-w.events:
			if !ok {
				return
			}
			w.handle(event)
		case <-w.closing:
			w.drain()
			return
		}
	}
}

// drain handles whatever is already buffered without waiting for more.
func (w *TelemetryWorker) drain() {
	for {
		select {
		case event, ok := <-w.events:
			if !ok {
				return
			}
			w.handle(event)
		default:
			return
		}
	}
}

func (w *TelemetryWorker) handle(event *models.TelemetryEvent) {
	if event == nil {
		return
	}
	log := w.logger.With(zap.String("event_type", event.EventType), zap.Stringer("event_id", event.ID))

	ctx, cancel := context.WithTimeout(context.Background(), w.sinkTimeout)
	defer cancel()

	if err := w.repo.Insert(ctx, event); err != nil {
		telemetrySinkFailuresTotal.WithLabelValues(sinkDatabase).Inc()
		log.Error("Failed to store telemetry event", zap.Error(err))
	} else {
		telemetryStoredTotal.WithLabelValues(sinkDatabase).Inc()
	}

	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishTelemetry(ctx, event); err != nil {
		telemetrySinkFailuresTotal.WithLabelValues(sinkBroker).Inc()
		log.Error("Failed to publish telemetry event", zap.Error(err))
	} else {
		telemetryStoredTotal.WithLabelValues(sinkBroker).Inc()
	}
}

// Shutdown stops the worker after it handles the events already buffered, or
// returns when ctx is done first.
func (w *TelemetryWorker) Shutdown(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.closing) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Telemetry worker stopped")
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for telemetry worker to drain")
	}
}
