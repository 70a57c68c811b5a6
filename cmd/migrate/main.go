package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/logging"
	"github.com/Rrens/chat-bridge/internal/repository/postgres"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	version := flag.Bool("version", false, "print the current schema version and exit")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Archive.Driver != "postgres" {
		fmt.Fprintf(os.Stderr, "archive driver is %q; migrations only apply to postgres (other drivers create their schema on open)\n", cfg.Archive.Driver)
		os.Exit(1)
	}
	dsn := cfg.Archive.DSN

	switch {
	case *version:
		v, dirty, err := postgres.MigrationVersion(dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	case *down > 0:
		if err := postgres.RollbackMigrations(dsn, *down); err != nil {
			fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", *down)
	default:
		if err := postgres.RunMigrations(dsn); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	}
}
