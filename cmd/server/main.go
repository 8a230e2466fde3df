package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/app"
	"github.com/echoseed/echoseed/internal/config"
)

const shutdownGrace = 30 * time.Second

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Configuration load failed")
	}

	application, err := app.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("Application initialization failed")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: application.Router(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Drain in-flight HTTP requests before closing the transports they
	// may still be publishing to.
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Server forced to shut down")
	}
	if err := application.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Application shutdown error")
	}

	log.Info("Server exited")
}
