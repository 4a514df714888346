// Command frontdesk runs the telephony voice-agent bridge: inbound calls are
// connected to a media-stream WebSocket, caller audio flows to the dialogue
// collaborator, and synthesized responses are paced back to the caller.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxlane/go-frontdesk/internal/config"
	"github.com/voxlane/go-frontdesk/internal/log"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log.Init(os.Getenv("LOG_LEVEL"))
	logger := log.L()

	cfg := config.FromEnv()
	cfg.LogDisabledFeatures(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := config.NewStore(ctx, &config.EnvLoader{}, cfg.SnapshotTTL, logger)
	cancel()
	if err != nil {
		logger.Error("initial configuration load failed", "error", err)
		os.Exit(1)
	}

	srv, err := NewServer(cfg, store, logger)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("frontdesk listening", "addr", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
