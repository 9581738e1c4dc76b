// Package main implements the entry point for the TaskRelay worker,
// which consumes queued task messages and processes them to completion.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskrelay/taskrelay/internal/config"
	"github.com/taskrelay/taskrelay/internal/platform/logger"
	"github.com/taskrelay/taskrelay/internal/platform/postgres"
	"github.com/taskrelay/taskrelay/internal/worker"
)

// reconnectDelay is how long the worker waits before redialing the broker
// after a lost connection.
const reconnectDelay = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}

	appLogger.Info("Worker shutdown completed")
}

func run(cfg *config.Config, appLogger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
	}()

	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	processing := worker.NewProcessingService(db, taskStore, appLogger)
	work := worker.SimulatedWork(time.Duration(cfg.Worker.ProcessingDelaySeconds) * time.Second)
	consumer := worker.NewConsumer(processing, work, cfg.Queue.Name, cfg.Worker.MaxRetries, appLogger)

	// Consume until shutdown, redialing the broker when the connection drops.
	for {
		if err := consumeOnce(ctx, cfg, consumer, appLogger); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			appLogger.Error("Queue connection lost, reconnecting",
				"error", err,
				"delay", reconnectDelay.String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// consumeOnce dials the broker and runs the consumer loop on a fresh
// channel until the connection fails or the context is cancelled.
func consumeOnce(
	ctx context.Context,
	cfg *config.Config,
	consumer *worker.Consumer,
	appLogger *slog.Logger,
) error {
	conn, err := amqp.Dial(cfg.Queue.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, amqp.ErrClosed) {
			appLogger.Error("Error closing queue connection", "error", closeErr)
		}
	}()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	appLogger.Info("Connected to queue", "queue", cfg.Queue.Name)
	return consumer.Run(ctx, channel)
}

// setupDatabase opens and verifies the database connection for the worker.
func setupDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLogger.Info("Database connection established")
	return db, nil
}
