package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garyjia/image-annotation/internal/config"
	"github.com/garyjia/image-annotation/internal/container"
	httpapi "github.com/garyjia/image-annotation/internal/interfaces/http"
	"github.com/garyjia/image-annotation/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the yaml config file, empty to use defaults and environment only")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting image annotation service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("labels", cfg.Engine.Labels))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build and start every component
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = c.Start(startCtx)
	cancel()
	if err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container close failed", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			Mode:         cfg.Server.Mode,
		},
		c.Engine(),
		services.Users,
		services.Archive,
		func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
		container.NewLoggerAdapter(logger.Named("http")),
	)

	// Serve until SIGINT/SIGTERM
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}

// resolveConfigPath drops the default path when the file is absent so the service can run
// from defaults and environment alone
func resolveConfigPath(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && path == "configs/config.yaml" {
		return ""
	}
	return path
}
