// Package main is the entry point for the reelcast service.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
)

var (
	// version can be set at build time via -ldflags
	version = "dev"
)

func main() {
	// Get command from args, default to "both" (api + worker)
	command := "both"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "both", "all":
		startBoth()
	case "api":
		runAPIServer()
	case "worker":
		runWorker()
	case "version":
		log.Printf("Reelcast version %s\n", version)
		os.Exit(0)
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	default:
		log.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// startBoth starts the API server and the poster worker on shared connections
func startBoth() {
	log.Printf("Reelcast Service v%s - Starting API Server and Poster Worker\n", version)

	a, err := newApp()
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer a.Close()

	apiStop, err := a.startAPI()
	if err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	workerStop := a.startWorker()

	log.Println("Both services started successfully")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, shutting down both services...", sig)

	workerStop()
	apiStop()

	log.Println("All services stopped successfully")
}

func printUsage() {
	log.Println("Reelcast Service - Multi-command CLI")
	log.Println()
	log.Println("Usage:")
	log.Println("  reelcast [command]")
	log.Println()
	log.Println("Commands:")
	log.Println("  both       Start both HTTP API server and poster worker (default)")
	log.Println("  api        Start the HTTP API server only")
	log.Println("  worker     Start the background poster worker only")
	log.Println("  version    Print version information")
	log.Println("  help       Show this help message")
	log.Println()
	log.Println("Examples:")
	log.Println("  reelcast                 # Start both API server and worker (default)")
	log.Println("  reelcast api             # Start API server only on port 8070")
	log.Println("  reelcast worker          # Start poster worker only")
	log.Println()
	log.Println("Environment Variables:")
	log.Println("  CONFIG_PATH                  - Config file path (default: config.yml)")
	log.Println()
	log.Println("  Database:")
	log.Println("    POSTGRES_HOST              - PostgreSQL host")
	log.Println("    POSTGRES_USER              - PostgreSQL user")
	log.Println("    POSTGRES_PASSWORD          - PostgreSQL password")
	log.Println("    POSTGRES_DB                - PostgreSQL database")
	log.Println()
	log.Println("  Cache:")
	log.Println("    REDIS_ADDR                 - Redis address (default: localhost:6379)")
	log.Println()
	log.Println("  API Server:")
	log.Println("    REELCAST_PORT              - HTTP port (default: 8070)")
	log.Println("    APP_DEBUG                  - Debug mode: true|false")
	log.Println()
	log.Println("  Platforms:")
	log.Println("    INSTAGRAM_ACCESS_TOKEN     - Instagram Graph API token")
	log.Println("    INSTAGRAM_ACCOUNT_ID       - Instagram business account ID")
	log.Println("    YOUTUBE_ACCESS_TOKEN       - YouTube Data API token")
	log.Println("    IMGBB_API_KEY              - Enables the imgbb staging fallback")
}
