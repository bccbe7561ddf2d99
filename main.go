package main

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/wfkit/cmd"
	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/logger"
)

func main() {
	// Get app configuration file from environment if specified
	configFile := os.Getenv("WFKIT_CONFIG")

	// 1. Initialize application configuration
	if err := config.Initialize(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logging based on application configuration
	if err := cmd.InitLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	logger.LogDebug("Application started", map[string]interface{}{
		"version": cmd.Version,
		"config":  config.ConfigFile,
	})

	// 3. Run the CLI
	err := cmd.Execute()

	// Ensure logs are flushed before exit
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
