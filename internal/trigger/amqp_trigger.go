package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fairytale-server/shared/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// AMQPImageTrigger публикует задачу генерации изображения в очередь RabbitMQ.
type AMQPImageTrigger struct {
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewAMQPImageTrigger открывает канал и объявляет durable очередь.
func NewAMQPImageTrigger(conn *amqp.Connection, queue string, logger *zap.Logger) (*AMQPImageTrigger, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queue, err)
	}
	return &AMQPImageTrigger{ch: ch, queue: queue, logger: logger.Named("AMQPImageTrigger")}, nil
}

// Fire публикует задачу в фоне.
func (t *AMQPImageTrigger) Fire(task models.ImageTask) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.publish(task); err != nil {
			imageTriggersTotal.WithLabelValues("amqp", "error").Inc()
			t.logger.Warn("Failed to publish image task", zap.String("segment_id", task.SegmentID), zap.Error(err))
			return
		}
		imageTriggersTotal.WithLabelValues("amqp", "success").Inc()
	}()
}

func (t *AMQPImageTrigger) publish(task models.ImageTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal image task: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return t.ch.PublishWithContext(ctx,
		"",      // default exchange
		t.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Wait дожидается незавершенных публикаций.
func (t *AMQPImageTrigger) Wait() {
	t.wg.Wait()
}

// Close закрывает канал после Wait.
func (t *AMQPImageTrigger) Close() error {
	t.wg.Wait()
	return t.ch.Close()
}
