package config

import (
	"github.com/garyjia/image-annotation/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	labels := make([]string, len(c.Engine.Labels))
	copy(labels, c.Engine.Labels)

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Engine: container.EngineConfig{
			OperationTimeout: c.Engine.OperationTimeout,
			Labels:           labels,
			DefaultPageSize:  c.Engine.DefaultPageSize,
			MaxPageSize:      c.Engine.MaxPageSize,
		},
		Events: container.EventsConfig{
			KafkaBrokers:   c.Events.KafkaBrokers,
			KafkaTopic:     c.Events.KafkaTopic,
			PublishTimeout: c.Events.PublishTimeout,
		},
		Bootstrap: container.BootstrapConfig{
			AdminUsername: c.Bootstrap.AdminUsername,
		},
	}
}
