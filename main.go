package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"invoicequeue/cmd"
	"invoicequeue/internal/config"
	"invoicequeue/internal/logger"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code after deferred cleanup has run
func run() int {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	logConfig := logger.DefaultConfig()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
	} else {
		logConfig = cfg.GetLoggerConfig()
	}

	closer, err := logger.Setup(logConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting invoicequeue")

	// A nil config is reloaded by the command, which reports the error
	if err := cmd.Execute(cfg); err != nil {
		return 1
	}
	return 0
}
