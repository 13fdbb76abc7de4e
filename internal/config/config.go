package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. ANNOTATE_SERVER_PORT
const EnvPrefix = "ANNOTATE"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Events    EventsConfig    `mapstructure:"events"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release or test
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`

	// MigrationsDir overrides the migrations compiled into the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// EngineConfig tunes the lifecycle engine
type EngineConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Labels           []string      `mapstructure:"labels"`
	DefaultPageSize  int           `mapstructure:"default_page_size"`
	MaxPageSize      int           `mapstructure:"max_page_size"`
}

// EventsConfig holds the lifecycle event sink configuration. No brokers disables the sink.
type EventsConfig struct {
	KafkaBrokers   []string      `mapstructure:"kafka_brokers"`
	KafkaTopic     string        `mapstructure:"kafka_topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// BootstrapConfig holds startup provisioning
type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional yaml file, an optional .env file and the environment.
// An empty configPath skips the file; a named file that cannot be read is an error.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path without overriding ones already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so AutomaticEnv
// can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/annotation.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "")

	// Engine defaults
	v.SetDefault("engine.operation_timeout", 5*time.Second)
	v.SetDefault("engine.labels", []string{"cat", "dog"})
	v.SetDefault("engine.default_page_size", 20)
	v.SetDefault("engine.max_page_size", 100)

	// Event sink defaults
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "annotation.lifecycle")
	v.SetDefault("events.publish_timeout", 3*time.Second)

	v.SetDefault("bootstrap.admin_username", "admin")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("database.busy_timeout must be positive")
	}

	if c.Engine.OperationTimeout <= 0 {
		return fmt.Errorf("engine.operation_timeout must be positive")
	}
	if len(c.Engine.Labels) != 2 {
		return fmt.Errorf("engine.labels must name exactly two labels, got %d", len(c.Engine.Labels))
	}
	seen := make(map[string]bool, len(c.Engine.Labels))
	for _, l := range c.Engine.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("engine.labels must not contain an empty label")
		}
		if seen[l] {
			return fmt.Errorf("engine.labels contains %q twice", l)
		}
		seen[l] = true
	}
	if c.Engine.DefaultPageSize < 1 || c.Engine.MaxPageSize < c.Engine.DefaultPageSize {
		return fmt.Errorf("engine page sizes must satisfy 1 <= default_page_size <= max_page_size")
	}

	if len(c.Events.KafkaBrokers) > 0 {
		if c.Events.KafkaTopic == "" {
			return fmt.Errorf("events.kafka_topic is required when brokers are set")
		}
		if c.Events.PublishTimeout <= 0 {
			return fmt.Errorf("events.publish_timeout must be positive")
		}
	}

	return nil
}
