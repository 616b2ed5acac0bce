package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
	appID           = "miniquest-server"
)

// rabbitMQTelemetryPublisher publishes telemetry events as persistent JSON messages
// to a durable queue through the default exchange.
type rabbitMQTelemetryPublisher struct {
	mu        sync.Mutex
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

var _ interfaces.TelemetryPublisher = (*rabbitMQTelemetryPublisher)(nil)

// NewRabbitMQTelemetryPublisher opens a channel and declares the queue.
func NewRabbitMQTelemetryPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (interfaces.TelemetryPublisher, error) {
	log := logger.Named("TelemetryPublisher").With(zap.String("queue", queueName))

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("telemetry publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("telemetry publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log.Info("Telemetry queue declared")

	return &rabbitMQTelemetryPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishTelemetry retries a few times with exponential backoff before giving up.
func (p *rabbitMQTelemetryPublisher) PublishTelemetry(ctx context.Context, event *models.TelemetryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	attempt := 0
	op := func() error {
		attempt++
		p.mu.Lock()
		ch := p.channel
		p.mu.Unlock()
		if ch == nil {
			return backoff.Permanent(errors.New("rabbitmq channel is closed"))
		}
		return ch.PublishWithContext(ctx,
			"",          // default exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    event.ID.String(),
				Type:         event.EventType,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        appID,
			},
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newPublishBackOff(), publishAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		p.logger.Warn("Failed to publish telemetry event",
			zap.String("eventType", event.EventType), zap.Int("attempts", attempt), zap.Error(err))
		return fmt.Errorf("failed to publish to queue %s: %w", p.queueName, err)
	}
	return nil
}

// Close closes the channel. The connection is owned by the caller.
func (p *rabbitMQTelemetryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	return err
}

func newPublishBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}
