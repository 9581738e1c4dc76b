package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig contains the message broker settings shared by the API
// process (publisher) and the worker process (consumer).
type QueueConfig struct {
	URL  string `mapstructure:"url" validate:"required"`
	Name string `mapstructure:"name" validate:"required"`
}

// WorkerConfig contains settings for the task worker process.
type WorkerConfig struct {
	// MaxRetries bounds the total number of processing attempts per
	// message; the attempt that exhausts it marks the task FAILED.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// ProcessingDelay simulates the duration of the placeholder work
	// function. Real deployments replace the work function entirely.
	ProcessingDelaySeconds int `mapstructure:"processing_delay_seconds" validate:"gte=0"`
}
