package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/reelcast/internal/api"
)

const (
	defaultIdleTimeout = 60 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// runAPIServer starts the API server standalone and blocks until a signal.
func runAPIServer() {
	log.Println("Starting Reelcast API Server...")

	a, err := newApp()
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer a.Close()

	stop, err := a.startAPI()
	if err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stop()
	log.Println("Server stopped")
}

// startAPI launches the HTTP server and returns a stop function for
// graceful shutdown.
func (a *app) startAPI() (func(), error) {
	router := api.NewRouter(api.RouterDeps{
		Repo:        a.repo,
		DB:          a.db,
		RedisClient: a.redis,
		Blobs:       a.blobs,
		Posted:      a.tracker,
		Captions:    a.captions,
		Metrics:     a.metricsHandler(),
		Config:      a.cfg,
		Logger:      a.log,
	})

	server := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	go func() {
		log.Printf("API server listening on %s", server.Addr)
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", serveErr)
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("Server forced to shutdown: %v", shutdownErr)
		}
	}
	return stop, nil
}
