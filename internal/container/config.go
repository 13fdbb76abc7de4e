// Package container provides dependency injection and lifecycle management
// for the image annotation service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lifecycle engine configuration
	Engine EngineConfig

	// Lifecycle event sink configuration
	Events EventsConfig

	// Startup provisioning
	Bootstrap BootstrapConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a connection waits for the write lock
	BusyTimeout time.Duration

	// MigrationsDir reads migrations from disk instead of the embedded set when non-empty
	MigrationsDir string
}

// EngineConfig holds lifecycle engine settings.
type EngineConfig struct {
	// OperationTimeout bounds the store time of one engine operation
	OperationTimeout time.Duration

	// Labels is the two-class label set
	Labels []string

	DefaultPageSize int
	MaxPageSize     int
}

// EventsConfig holds the Kafka sink settings. No brokers leaves the sink disabled.
type EventsConfig struct {
	KafkaBrokers   []string
	KafkaTopic     string
	PublishTimeout time.Duration
}

// BootstrapConfig holds startup provisioning settings.
type BootstrapConfig struct {
	// AdminUsername is ensured to exist as an admin at start; empty skips it
	AdminUsername string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/annotation.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Engine: EngineConfig{
			OperationTimeout: 5 * time.Second,
			Labels:           []string{"cat", "dog"},
			DefaultPageSize:  20,
			MaxPageSize:      100,
		},
		Events: EventsConfig{
			KafkaTopic:     "annotation.lifecycle",
			PublishTimeout: 3 * time.Second,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.OperationTimeout <= 0 {
		return fmt.Errorf("engine.operation_timeout must be positive")
	}
	if len(c.Engine.Labels) != 2 {
		return fmt.Errorf("engine.labels must name exactly two labels")
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("events.kafka_topic is required when brokers are set")
	}
	return nil
}
