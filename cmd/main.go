package main

import (
	"os"
	"os/signal"
	"syscall"

	"optionvault/internal/bootstrap"
	"optionvault/pkg/logger"
)

func main() {
	container := bootstrap.NewContainer()
	container.MustInit()
	defer logger.Sync()

	log := container.Log
	log.Infof("Starting %s in %s mode", container.Config.App.Name, container.Config.App.Env)

	if err := container.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	// Wait for shutdown signal or fatal component failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("Received signal: %v", sig)
	case <-container.Context.Done():
		log.Warn("Application context cancelled")
	}

	container.Shutdown()
}
