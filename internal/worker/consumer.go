package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskrelay/taskrelay/internal/queue"
	"github.com/taskrelay/taskrelay/internal/store"
)

// DefaultMaxRetries is the total number of processing attempts allowed
// per message before the task is marked FAILED.
const DefaultMaxRetries = 3

// Consumer drives the consume-process-acknowledge loop. It resolves each
// delivered message to a task id, runs the lifecycle transitions through
// the ProcessingService, and acknowledges exactly once per delivery.
type Consumer struct {
	processing *ProcessingService
	work       WorkFunc
	queueName  string
	maxRetries int
	logger     *slog.Logger
}

// NewConsumer creates a Consumer. maxRetries <= 0 falls back to
// DefaultMaxRetries. If logger is nil, a default logger will be used.
func NewConsumer(
	processing *ProcessingService,
	work WorkFunc,
	queueName string,
	maxRetries int,
	logger *slog.Logger,
) *Consumer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		processing: processing,
		work:       work,
		queueName:  queueName,
		maxRetries: maxRetries,
		logger:     logger.With(slog.String("component", "consumer")),
	}
}

// Run consumes messages from the queue on the given channel until the
// context is cancelled. Prefetch is limited to one message so each worker
// owns at most one in-flight delivery.
func (c *Consumer) Run(ctx context.Context, channel *amqp.Channel) error {
	if _, err := queue.DeclareQueue(channel, c.queueName); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := channel.ConsumeWithContext(
		ctx,
		c.queueName,
		"",    // consumer tag
		false, // auto-ack: we acknowledge manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("waiting for messages", slog.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, channel, delivery)
		}
	}
}

// handleDelivery runs one message through HandleMessage and performs the
// transport bookkeeping: on a retryable failure the message is republished
// with an incremented retry counter, and the original delivery is always
// acknowledged so a poison message can never loop forever.
func (c *Consumer) handleDelivery(ctx context.Context, channel *amqp.Channel, delivery amqp.Delivery) {
	retryCount := retryCountFrom(delivery.Headers)

	requeue := c.HandleMessage(ctx, delivery.Body, retryCount)

	if requeue {
		err := channel.PublishWithContext(
			ctx,
			"",
			c.queueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Headers:      amqp.Table{queue.RetryCountHeader: int32(retryCount + 1)},
				Body:         delivery.Body,
			},
		)
		if err != nil {
			// The requeue failed; the nack below hands the message back
			// to the broker unchanged instead of losing it.
			c.logger.Error("failed to republish message for retry",
				slog.String("error", err.Error()))
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				c.logger.Error("failed to nack message",
					slog.String("error", nackErr.Error()))
			}
			return
		}
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message",
			slog.String("error", err.Error()))
	}
}

// HandleMessage processes a single delivered message body and reports
// whether the message should be redelivered with an incremented retry
// counter. It never returns an error: any failure that cannot trigger a
// retry resolves to "acknowledge and drop" to keep the consume loop alive.
func (c *Consumer) HandleMessage(ctx context.Context, body []byte, retryCount int) bool {
	var msg queue.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("dropping unparseable message",
			slog.String("error", err.Error()))
		return false
	}

	taskID, err := uuid.Parse(msg.TaskID)
	if err != nil {
		c.logger.Error("dropping message with invalid task id",
			slog.String("error", err.Error()),
			slog.String("task_id", msg.TaskID))
		return false
	}

	log := c.logger.With(slog.String("task_id", taskID.String()))
	log.Info("processing task",
		slog.Int("attempt", retryCount+1),
		slog.Int("max_attempts", c.maxRetries))

	if err := c.processing.StartProcessing(ctx, taskID); err != nil {
		if store.IsNotFoundError(err) {
			// The task may have been deleted; nothing to process.
			log.Error("task not found, dropping message")
			return false
		}
		// Store unreachable or similar. Acknowledge anyway to avoid an
		// infinite redelivery loop on infrastructure failure.
		log.Error("failed to start processing, dropping message",
			slog.String("error", err.Error()))
		return false
	}

	result, workErr := c.work(ctx, taskID)
	if workErr == nil {
		if err := c.processing.CompleteProcessing(ctx, taskID, result); err != nil {
			log.Error("failed to record completion, dropping message",
				slog.String("error", err.Error()))
			return false
		}
		log.Info("task completed successfully")
		return false
	}

	log.Error("task processing failed",
		slog.String("error", workErr.Error()),
		slog.Int("attempt", retryCount+1))

	if retryCount+1 < c.maxRetries {
		// Leave the task IN_PROGRESS; the redelivered message will run
		// StartProcessing again.
		log.Info("requeueing task for retry",
			slog.Int("next_attempt", retryCount+2))
		return true
	}

	errorMessage := fmt.Sprintf("Failed after %d attempts: %v", retryCount+1, workErr)
	if err := c.processing.FailProcessing(ctx, taskID, errorMessage); err != nil {
		log.Error("failed to record failure, dropping message",
			slog.String("error", err.Error()))
	}
	return false
}

// retryCountFrom extracts the retry counter from message headers.
// An absent or non-numeric header counts as zero.
func retryCountFrom(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch v := headers[queue.RetryCountHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
