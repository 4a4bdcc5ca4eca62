// If you are AI: This is the main entrypoint for the bwstream server.
// It handles configuration loading, profile loading, server startup, and graceful shutdown.

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"bwstream/internal/config"
	"bwstream/internal/core/profile"
	"bwstream/internal/logging"
	"bwstream/internal/server"
)

// main is the entrypoint for the bwstream server.
// A missing or malformed profile table aborts startup.
func main() {
	configPath := flag.String("config", "configs/bwstream.example.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	table, err := profile.Load[profile.StreamConfig](cfg.Profile.Path, logger)
	if err != nil {
		logger.Fatal("failed to load profile", zap.Error(err))
	}
	if err := cfg.Profile.ValidateTable(table.Records()); err != nil {
		logger.Fatal("invalid profile", zap.Error(err))
	}

	shutdown := server.NewShutdownHandler(context.Background(), logger)
	defer shutdown.Stop()

	srv := server.New(cfg, table, logger)
	if err := srv.Run(shutdown.Context()); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
