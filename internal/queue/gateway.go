package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Gateway publishes "task ready" notices to a durable broker queue.
//
// The connection is established lazily on first use and re-established on
// the next use after a failure; there is no background heartbeat. Publish
// reports failures to the caller, but queue unavailability is expected to
// be non-fatal: the Task Service logs the error and leaves the task in
// PENDING rather than failing task creation.
type Gateway struct {
	url       string
	queueName string
	logger    *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewGateway creates a queue gateway for the given broker URL and queue
// name. No connection is made until the first publish.
// If logger is nil, a default logger will be used.
func NewGateway(url, queueName string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		url:       url,
		queueName: queueName,
		logger:    logger.With(slog.String("component", "queue_gateway")),
	}
}

// Publish sends a persistent task notice to the queue. The message body
// identifies the task by ID only. The queue is declared durable so
// messages survive broker restarts.
func (g *Gateway) Publish(ctx context.Context, taskID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	channel, err := g.ensureChannel()
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}

	body, err := json.Marshal(TaskMessage{TaskID: taskID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	err = channel.PublishWithContext(
		ctx,
		"",          // default exchange
		g.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		// Drop the broken channel so the next publish reconnects.
		g.reset()
		return fmt.Errorf("failed to publish task %s: %w", taskID, err)
	}

	g.logger.Info("task sent to queue",
		slog.String("task_id", taskID.String()),
		slog.String("queue", g.queueName))
	return nil
}

// IsConnected reports whether the gateway currently holds an open
// connection and channel to the broker.
func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.conn != nil && !g.conn.IsClosed() &&
		g.channel != nil && !g.channel.IsClosed()
}

// Close shuts down the channel and connection if they are open.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error

	if g.channel != nil && !g.channel.IsClosed() {
		if err := g.channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.channel = nil

	if g.conn != nil && !g.conn.IsClosed() {
		if err := g.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.conn = nil

	g.logger.Info("disconnected from queue")
	return firstErr
}

// ensureChannel returns an open channel, dialing the broker and declaring
// the durable queue if needed. Caller must hold g.mu.
func (g *Gateway) ensureChannel() (*amqp.Channel, error) {
	if g.channel != nil && !g.channel.IsClosed() {
		return g.channel, nil
	}

	g.reset()

	conn, err := amqp.Dial(g.url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			g.logger.Warn("failed to close connection after channel error",
				slog.String("error", closeErr.Error()))
		}
		return nil, err
	}

	if _, err := DeclareQueue(channel, g.queueName); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			g.logger.Warn("failed to close connection after declare error",
				slog.String("error", closeErr.Error()))
		}
		return nil, err
	}

	g.conn = conn
	g.channel = channel
	g.logger.Info("connected to queue broker", slog.String("queue", g.queueName))
	return channel, nil
}

// reset discards the current connection state without closing it cleanly.
// Caller must hold g.mu.
func (g *Gateway) reset() {
	g.channel = nil
	g.conn = nil
}

// DeclareQueue declares the named queue as durable on the given channel.
// Both the publisher and the worker declare the queue so either side can
// start first.
func DeclareQueue(channel *amqp.Channel, name string) (amqp.Queue, error) {
	return channel.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
}
