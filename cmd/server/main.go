package main

import (
	"context"
	"os/signal"
	"syscall"

	"async-import/internal/app"
	"async-import/internal/config"
	"async-import/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to start import pipeline", logger.Err(err))
	}
	defer a.Close()

	if err := a.RunServer(ctx, app.ServeOptions{Worker: true}); err != nil {
		logger.Error("server stopped with error", logger.Err(err))
		return
	}
	logger.Info("server exited")
}
