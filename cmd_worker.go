package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonesrussell/reelcast/internal/worker"
)

// runWorker starts the poster worker standalone and blocks until a signal.
func runWorker() {
	log.Println("Starting Reelcast Poster Worker...")

	a, err := newApp()
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer a.Close()

	stop := a.startWorker()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	stop()
	log.Println("Worker stopped")
}

// startWorker builds the poster from the shared app and starts its loop,
// returning a stop function.
func (a *app) startWorker() func() {
	composer, err := a.buildCompositor()
	if err != nil {
		log.Fatalf("Failed to initialize compositor: %v", err)
	}

	publishers := a.buildPublishers()
	if len(publishers) == 0 {
		log.Println("Warning: no platforms enabled, worker will fail every claimed reel")
	}

	poster := worker.NewPoster(worker.PosterDeps{
		Store:      a.repo,
		Blobs:      a.blobs,
		Composer:   composer,
		Stager:     a.buildStager(),
		Publishers: publishers,
		Marker:     a.tracker,
		Captions:   a.captions,
		Metrics:    a.metrics,
		Logger:     a.log,
	}, worker.PosterConfig{
		PollInterval:   a.cfg.Worker.PollInterval,
		PublishTimeout: a.cfg.Worker.PublishTimeout,
		PostSpacing:    a.cfg.Worker.PostSpacing,
	})

	ctx, cancel := context.WithCancel(context.Background())
	poster.Start(ctx)

	return func() {
		// Let an in-flight reel finish before cancelling the context,
		// which would abort its publish mid-attempt
		poster.Stop()
		cancel()
	}
}
